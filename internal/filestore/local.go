// Package filestore keeps uploaded annual reports in a local directory.
package filestore

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/reportqa/internal/domain"
	"github.com/kailas-cloud/reportqa/internal/domain/report"
)

const (
	pdfMagic   = "%PDF-"
	tempPrefix = ".upload-"
)

// Options configures a LocalStore.
type Options struct {
	Dir     string
	MaxSize int64
	// UploadTypes are extensions accepted by Store.
	UploadTypes []string
	// KnownTypes are extensions Cleanup keeps. Defaults to UploadTypes.
	KnownTypes []string
}

// CleanupResult lists files removed by Cleanup.
type CleanupResult struct {
	Files []string
	Size  int64
	Count int
}

// DirInfo summarizes the upload directory.
type DirInfo struct {
	Exists       bool
	Path         string
	Size         int64
	FileCount    int
	MaxFileSize  int64
	AllowedTypes []string
}

// LocalStore implements report storage on the local filesystem.
// Writes and deletes are serialized by an in-process mutex.
type LocalStore struct {
	mu   sync.Mutex
	opts Options
}

// NewLocalStore creates the directory if needed.
func NewLocalStore(opts Options) (*LocalStore, error) {
	if opts.Dir == "" {
		return nil, errors.New("directory is required")
	}
	if opts.MaxSize <= 0 {
		return nil, errors.New("max size must be positive")
	}
	if len(opts.KnownTypes) == 0 {
		opts.KnownTypes = opts.UploadTypes
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &LocalStore{opts: opts}, nil
}

// Dir returns the storage directory.
func (s *LocalStore) Dir() string { return s.opts.Dir }

// Store validates and writes an uploaded report. The content goes to a temporary
// file first and is renamed into place once every check passes.
func (s *LocalStore) Store(name string, r io.Reader, overwrite bool) (report.File, error) {
	safe := report.SafeFilename(name)
	if safe == "" {
		return report.File{}, domain.NewValidationError("invalid filename")
	}
	ext := report.Ext(safe)
	if !slices.Contains(s.opts.UploadTypes, ext) {
		return report.File{}, domain.NewValidationError(
			"file type %s not allowed, allowed types: %s", displayExt(ext), strings.Join(s.opts.UploadTypes, ", "))
	}

	br := bufio.NewReader(r)
	head, err := br.Peek(len(pdfMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return report.File{}, fmt.Errorf("reading upload: %w", err)
	}
	if len(head) == 0 {
		return report.File{}, domain.NewValidationError("file is empty")
	}
	if ext == ".pdf" && !bytes.Equal(head, []byte(pdfMagic)) {
		return report.File{}, domain.NewValidationError("file content is not a valid PDF")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dst := filepath.Join(s.opts.Dir, safe)
	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return report.File{}, fmt.Errorf("file %s: %w", safe, domain.ErrConflict)
		}
	}

	tmp, err := os.CreateTemp(s.opts.Dir, tempPrefix+"*")
	if err != nil {
		return report.File{}, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(br, s.opts.MaxSize+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return report.File{}, fmt.Errorf("writing upload: %w", err)
	}
	if size > s.opts.MaxSize {
		return report.File{}, domain.NewFileTooLargeError(s.opts.MaxSize)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return report.File{}, fmt.Errorf("moving upload into place: %w", err)
	}
	committed = true

	fi, err := os.Stat(dst)
	if err != nil {
		return report.File{}, fmt.Errorf("stat %s: %w", safe, err)
	}

	return report.File{
		Name:     safe,
		Path:     dst,
		Size:     size,
		Modified: fi.ModTime().UTC().Truncate(time.Second),
		Hash:     hex.EncodeToString(h.Sum(nil)),
		Year:     report.YearFromFilename(safe),
	}, nil
}

// List returns stored files, newest first, then by name.
func (s *LocalStore) List() ([]report.File, error) {
	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading upload directory: %w", err)
	}

	files := make([]report.File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		f, err := s.describe(e.Name())
		if err != nil {
			// removed between ReadDir and Stat
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].Modified.Equal(files[j].Modified) {
			return files[i].Modified.After(files[j].Modified)
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// Get describes a single stored file.
func (s *LocalStore) Get(name string) (report.File, error) {
	if report.SafeFilename(name) != name {
		return report.File{}, fmt.Errorf("file %s: %w", name, domain.ErrNotFound)
	}
	f, err := s.describe(name)
	if errors.Is(err, fs.ErrNotExist) {
		return report.File{}, fmt.Errorf("file %s: %w", name, domain.ErrNotFound)
	}
	return f, err
}

// Delete removes a stored file and returns its size.
func (s *LocalStore) Delete(name string) (int64, error) {
	if report.SafeFilename(name) != name {
		return 0, fmt.Errorf("file %s: %w", name, domain.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.opts.Dir, name)
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return 0, fmt.Errorf("file %s: %w", name, domain.ErrNotFound)
	}
	if err := os.Remove(path); err != nil {
		return 0, fmt.Errorf("deleting %s: %w", name, err)
	}
	return fi.Size(), nil
}

// Cleanup removes files not in referenced, files with unknown extensions, empty or
// oversize files, and leftover temporary uploads.
func (s *LocalStore) Cleanup(referenced map[string]bool) (CleanupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CleanupResult{}, nil
		}
		return CleanupResult{}, fmt.Errorf("reading upload directory: %w", err)
	}

	res := CleanupResult{Files: []string{}}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if !s.shouldRemove(name, fi.Size(), referenced) {
			continue
		}
		if err := os.Remove(filepath.Join(s.opts.Dir, name)); err != nil {
			return res, fmt.Errorf("removing %s: %w", name, err)
		}
		res.Files = append(res.Files, name)
		res.Size += fi.Size()
		res.Count++
	}
	return res, nil
}

func (s *LocalStore) shouldRemove(name string, size int64, referenced map[string]bool) bool {
	switch {
	case strings.HasPrefix(name, tempPrefix):
		return true
	case strings.HasPrefix(name, "."):
		return false
	case !slices.Contains(s.opts.KnownTypes, report.Ext(name)):
		return true
	case size == 0 || size > s.opts.MaxSize:
		return true
	default:
		return !referenced[name]
	}
}

// Info summarizes the directory.
func (s *LocalStore) Info() (DirInfo, error) {
	info := DirInfo{
		Path:         s.opts.Dir,
		MaxFileSize:  s.opts.MaxSize,
		AllowedTypes: slices.Clone(s.opts.UploadTypes),
	}
	if _, err := os.Stat(s.opts.Dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return info, nil
		}
		return info, fmt.Errorf("stat upload directory: %w", err)
	}
	info.Exists = true

	files, err := s.List()
	if err != nil {
		return info, err
	}
	for _, f := range files {
		info.Size += f.Size
	}
	info.FileCount = len(files)
	return info, nil
}

func (s *LocalStore) describe(name string) (report.File, error) {
	path := filepath.Join(s.opts.Dir, name)
	fi, err := os.Stat(path)
	if err != nil {
		return report.File{}, err
	}
	if fi.IsDir() {
		return report.File{}, fs.ErrNotExist
	}
	hash, err := hashFile(path)
	if err != nil {
		return report.File{}, err
	}
	return report.File{
		Name:     name,
		Path:     path,
		Size:     fi.Size(),
		Modified: fi.ModTime().UTC().Truncate(time.Second),
		Hash:     hash,
		Year:     report.YearFromFilename(name),
	}, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", filepath.Base(path), err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func displayExt(ext string) string {
	if ext == "" {
		return "(none)"
	}
	return ext
}
