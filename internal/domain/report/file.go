package report

import (
	"sort"
	"time"
)

// File describes a report stored in the file store.
type File struct {
	Name     string
	Path     string
	Size     int64
	Modified time.Time
	Hash     string // hex SHA-256 of the content
	Year     int    // 0 when the name carries no year
}

// ProcessedYear records a year whose report is indexed and queryable.
type ProcessedYear struct {
	Year        int
	Source      string // file name the chunks were built from
	ContentHash string
	Pages       int
	Chunks      int
	RunID       string
	ProcessedAt time.Time
}

// FilesByYear maps each year to its report file. When several files share a year,
// the lexicographically last name wins.
func FilesByYear(files []File) map[int]File {
	out := make(map[int]File)
	for _, f := range files {
		if f.Year == 0 {
			continue
		}
		if cur, ok := out[f.Year]; !ok || f.Name > cur.Name {
			out[f.Year] = f
		}
	}
	return out
}

// Years returns the distinct years of files, ascending.
func Years(files []File) []int {
	byYear := FilesByYear(files)
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
