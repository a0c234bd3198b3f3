package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reportqa/internal/domain"
	"github.com/kailas-cloud/reportqa/internal/domain/query"
	"github.com/kailas-cloud/reportqa/internal/version"
	filesuc "github.com/kailas-cloud/reportqa/internal/usecase/files"
	healthuc "github.com/kailas-cloud/reportqa/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/reportqa/internal/usecase/ingest"
	qauc "github.com/kailas-cloud/reportqa/internal/usecase/qa"
	statsuc "github.com/kailas-cloud/reportqa/internal/usecase/stats"
	usageuc "github.com/kailas-cloud/reportqa/internal/usecase/usage"
)

// ServiceName identifies the API in health responses.
const ServiceName = "qa-system"

const (
	maxQueryBody = 64 << 10
	// room for multipart headers around the file part
	multipartOverhead = 1 << 20
	multipartMemory   = 32 << 20
)

// Server implements ServerInterface on top of the use case services.
type Server struct {
	qa            *qauc.Service
	ingest        *ingestuc.Service
	files         *filesuc.Service
	stats         *statsuc.Service
	health        *healthuc.Service
	usage         *usageuc.Service
	logger        *zap.Logger
	maxUpload     int64
	started       time.Time
	errorHandlers []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server. maxUpload is the largest accepted file in bytes.
func NewServer(
	qa *qauc.Service,
	ingest *ingestuc.Service,
	files *filesuc.Service,
	stats *statsuc.Service,
	health *healthuc.Service,
	usage *usageuc.Service,
	maxUpload int64,
	logger *zap.Logger,
) *Server {
	return &Server{
		qa:            qa,
		ingest:        ingest,
		files:         files,
		stats:         stats,
		health:        health,
		usage:         usage,
		logger:        logger,
		maxUpload:     maxUpload,
		started:       time.Now(),
		errorHandlers: defaultErrorHandlers(),
	}
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:    string(report.Status),
		Service:   ServiceName,
		Version:   version.Version,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.started).Seconds(),
		Checks:    checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// APIInfo handles GET /api.
func (s *Server) APIInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		Message: "Apple Annual Report QA API",
		Status:  "running",
		Version: version.Version,
	})
}

// Query handles POST /api/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid request body")
		return
	}

	q, err := query.New(req.Query, req.Year, req.SearchAllYears)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	start := time.Now()
	data := QueryData{Query: q.Text()}

	if q.AllYears() {
		results, err := s.qa.QueryAllYears(r.Context(), q)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		m := resultsToDTO(results)
		data.SearchMode = qauc.ModeAllYears
		data.Results = &m
	} else {
		res, err := s.qa.Query(r.Context(), q)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		dto := resultToDTO(res)
		year := q.Year()
		data.SearchMode = qauc.ModeSingleYear
		data.Year = &year
		data.Result = &dto
	}
	data.ProcessingTime = time.Since(start).Seconds()

	writeJSON(w, http.StatusOK, QueryResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// GetStats handles GET /api/stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsToDTO(st))
}

// GetYears handles GET /api/years.
func (s *Server) GetYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.stats.Years()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, YearsResponse{Years: nonNilInts(years)})
}

// GetExampleQueries handles GET /api/example-queries.
func (s *Server) GetExampleQueries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ExampleQueriesResponse{Examples: s.qa.ExampleQueries()})
}

// InitData handles POST /api/init-data.
func (s *Server) InitData(w http.ResponseWriter, r *http.Request, params InitDataParams) {
	force := params.ForceReprocess != nil && *params.ForceReprocess

	sum, err := s.ingest.Initialize(r.Context(), force)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	st, err := s.stats.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, InitDataResponse{
		Success:   true,
		Message:   "Data initialization complete",
		RunID:     sum.RunID,
		Stats:     statsToDTO(st),
		Processed: nonNilInts(sum.Processed),
		Skipped:   nonNilInts(sum.Skipped),
		Pruned:    nonNilInts(sum.Pruned),
	})
}

// UploadPDF handles POST /api/upload-pdf (multipart field "file").
func (s *Server) UploadPDF(w http.ResponseWriter, r *http.Request, params UploadPDFParams) {
	overwrite := params.Overwrite != nil && *params.Overwrite

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.handleDomainError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.handleDomainError(w, r, domain.NewValidationError("file is required"))
		return
	}
	defer func() { _ = file.Close() }()

	f, err := s.files.Upload(r.Context(), header.Filename, file, overwrite)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Success:   true,
		Message:   fmt.Sprintf("File %s uploaded successfully", f.Name),
		Filename:  f.Name,
		FilePath:  f.Path,
		FileSize:  f.Size,
		Year:      yearPtr(f.Year),
		Timestamp: time.Now().UTC(),
	})
}

// ListFiles handles GET /api/files.
func (s *Server) ListFiles(w http.ResponseWriter, r *http.Request) {
	l, err := s.files.List()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]FileItem, len(l.Files))
	for i, f := range l.Files {
		items[i] = fileToDTO(f)
	}
	writeJSON(w, http.StatusOK, FilesResponse{
		Files:      items,
		TotalCount: l.TotalCount,
		TotalSize:  l.TotalSize,
	})
}

// GetFilesInfo handles GET /api/files/info.
func (s *Server) GetFilesInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.files.Info()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dirInfoToDTO(info))
}

// DeleteFile handles DELETE /api/files/{filename}.
func (s *Server) DeleteFile(w http.ResponseWriter, r *http.Request, filename string) {
	size, err := s.files.Delete(r.Context(), filename)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteFileResponse{
		Success:     true,
		Message:     fmt.Sprintf("File %s deleted successfully", filename),
		DeletedSize: size,
	})
}

// GetUsage handles GET /api/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request, params GetUsageParams) {
	var period string
	if params.Period != nil {
		period = *params.Period
	}
	report, err := s.usage.Report(r.Context(), period)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usageToDTO(report))
}

// CleanupFiles handles POST /api/files/cleanup.
func (s *Server) CleanupFiles(w http.ResponseWriter, r *http.Request) {
	res, err := s.files.Cleanup(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	files := res.Files
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, CleanupResponse{
		CleanedFiles: files,
		CleanedSize:  res.Size,
		TotalCleaned: res.Count,
	})
}

// NotFound answers unknown API paths with a JSON 404 and everything else with frontend.
func (s *Server) NotFound(frontend http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") || frontend == nil {
			writeError(w, http.StatusNotFound, ErrorCodeNotFound, "resource not found")
			return
		}
		frontend.ServeHTTP(w, r)
	}
}
