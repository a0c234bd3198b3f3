package chi

import (
	"strconv"
	"time"

	"github.com/kailas-cloud/reportqa/internal/domain/answer"
	"github.com/kailas-cloud/reportqa/internal/domain/report"
	domusage "github.com/kailas-cloud/reportqa/internal/domain/usage"
	"github.com/kailas-cloud/reportqa/internal/filestore"
	statsuc "github.com/kailas-cloud/reportqa/internal/usecase/stats"
)

// ErrorCode is the machine-readable error_code of an error response.
type ErrorCode string

// Error codes.
const (
	ErrorCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrorCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrorCodeFileUpload      ErrorCode = "FILE_UPLOAD_ERROR"
	ErrorCodeNotFound        ErrorCode = "RESOURCE_NOT_FOUND"
	ErrorCodeConflict        ErrorCode = "CONFLICT"
	ErrorCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrorCodeDataProcessing  ErrorCode = "DATA_PROCESSING_ERROR"
	ErrorCodeBudgetExceeded  ErrorCode = "BUDGET_EXCEEDED"
	ErrorCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrorCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	ErrorCode ErrorCode `json:"error_code"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Query          string `json:"query"`
	Year           *int   `json:"year,omitempty"`
	SearchAllYears bool   `json:"search_all_years"`
}

// QueryResponse wraps a query outcome.
type QueryResponse struct {
	Success   bool      `json:"success"`
	Data      QueryData `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryData is a single-year or all-years answer.
type QueryData struct {
	Query          string             `json:"query"`
	SearchMode     string             `json:"search_mode"`
	Year           *int               `json:"year,omitempty"`
	Result         *Result            `json:"result,omitempty"`
	Results        *map[string]Result `json:"results,omitempty"`
	ProcessingTime float64            `json:"processing_time"`
}

// Result is the answer for one year.
type Result struct {
	Year           int        `json:"year"`
	Answer         string     `json:"answer"`
	Confidence     float64    `json:"confidence"`
	Citations      []Citation `json:"citations"`
	Query          string     `json:"query"`
	ProcessingTime float64    `json:"processing_time"`
}

// Citation supports an answer.
type Citation struct {
	Text   string `json:"text"`
	Page   *int   `json:"page,omitempty"`
	Source string `json:"source"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	AvailableYears []int     `json:"available_years"`
	TotalYears     int       `json:"total_years"`
	ProcessedYears []int     `json:"processed_years"`
	TotalDocuments int       `json:"total_documents"`
	TotalChunks    int       `json:"total_chunks"`
	LastUpdated    time.Time `json:"last_updated"`
	ServiceStatus  string    `json:"service_status"`
}

// YearsResponse is the body of GET /api/years.
type YearsResponse struct {
	Years []int `json:"years"`
}

// ExampleQueriesResponse is the body of GET /api/example-queries.
type ExampleQueriesResponse struct {
	Examples []string `json:"examples"`
}

// InitDataResponse is the body of POST /api/init-data.
type InitDataResponse struct {
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	RunID     string        `json:"run_id"`
	Stats     StatsResponse `json:"stats"`
	Processed []int         `json:"processed"`
	Skipped   []int         `json:"skipped"`
	Pruned    []int         `json:"pruned"`
}

// UploadResponse is the body of POST /api/upload-pdf.
type UploadResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Filename  string    `json:"filename"`
	FilePath  string    `json:"file_path"`
	FileSize  int64     `json:"file_size"`
	Year      *int      `json:"year"`
	Timestamp time.Time `json:"timestamp"`
}

// FileItem describes a stored file.
type FileItem struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	FileHash string    `json:"file_hash"`
	Year     *int      `json:"year"`
}

// FilesResponse is the body of GET /api/files.
type FilesResponse struct {
	Files      []FileItem `json:"files"`
	TotalCount int        `json:"total_count"`
	TotalSize  int64      `json:"total_size"`
}

// FilesInfoResponse is the body of GET /api/files/info.
type FilesInfoResponse struct {
	UploadDirectory string   `json:"upload_directory"`
	Exists          bool     `json:"exists"`
	TotalSize       int64    `json:"total_size"`
	FileCount       int      `json:"file_count"`
	MaxFileSize     int64    `json:"max_file_size"`
	AllowedTypes    []string `json:"allowed_types"`
}

// DeleteFileResponse is the body of DELETE /api/files/{filename}.
type DeleteFileResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	DeletedSize int64  `json:"deleted_size"`
}

// CleanupResponse is the body of POST /api/files/cleanup.
type CleanupResponse struct {
	CleanedFiles []string `json:"cleaned_files"`
	CleanedSize  int64    `json:"cleaned_size"`
	TotalCleaned int      `json:"total_cleaned"`
}

// UsageResponse is the body of GET /api/usage. tokens_limit 0 means unlimited and
// tokens_remaining is then -1.
type UsageResponse struct {
	Period          string    `json:"period"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensLimit     int64     `json:"tokens_limit"`
	TokensRemaining int64     `json:"tokens_remaining"`
	IsExhausted     bool      `json:"is_exhausted"`
	Action          string    `json:"action,omitempty"`
	ResetsAt        time.Time `json:"resets_at"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    float64           `json:"uptime"`
	Checks    map[string]string `json:"checks"`
}

// InfoResponse is the body of GET /api.
type InfoResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

func resultToDTO(r answer.Result) Result {
	cits := make([]Citation, len(r.Citations))
	for i, c := range r.Citations {
		cits[i] = Citation{Text: c.Text, Source: c.Source}
		if c.Page > 0 {
			p := c.Page
			cits[i].Page = &p
		}
	}
	return Result{
		Year:           r.Year,
		Answer:         r.Answer,
		Confidence:     r.Confidence,
		Citations:      cits,
		Query:          r.Query,
		ProcessingTime: r.ProcessingTime.Seconds(),
	}
}

func resultsToDTO(m map[int]answer.Result) map[string]Result {
	out := make(map[string]Result, len(m))
	for y, r := range m {
		out[strconv.Itoa(y)] = resultToDTO(r)
	}
	return out
}

func statsToDTO(st statsuc.Stats) StatsResponse {
	return StatsResponse{
		AvailableYears: nonNilInts(st.AvailableYears),
		TotalYears:     len(st.AvailableYears),
		ProcessedYears: nonNilInts(st.ProcessedYears),
		TotalDocuments: st.TotalDocuments,
		TotalChunks:    st.TotalChunks,
		LastUpdated:    st.LastUpdated,
		ServiceStatus:  st.Status,
	}
}

func fileToDTO(f report.File) FileItem {
	return FileItem{
		Filename: f.Name,
		Size:     f.Size,
		Modified: f.Modified,
		FileHash: f.Hash,
		Year:     yearPtr(f.Year),
	}
}

func dirInfoToDTO(info filestore.DirInfo) FilesInfoResponse {
	return FilesInfoResponse{
		UploadDirectory: info.Path,
		Exists:          info.Exists,
		TotalSize:       info.Size,
		FileCount:       info.FileCount,
		MaxFileSize:     info.MaxFileSize,
		AllowedTypes:    info.AllowedTypes,
	}
}

func usageToDTO(r domusage.Report) UsageResponse {
	return UsageResponse{
		Period:          string(r.Period),
		PeriodStart:     r.Start,
		PeriodEnd:       r.End,
		TokensUsed:      r.Used,
		TokensLimit:     r.Limit,
		TokensRemaining: r.Remaining,
		IsExhausted:     r.Exhausted(),
		Action:          r.Action,
		ResetsAt:        r.End,
	}
}

func yearPtr(y int) *int {
	if y == 0 {
		return nil
	}
	return &y
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
