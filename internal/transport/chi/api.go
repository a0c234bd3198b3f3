package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// InitDataParams defines parameters for InitData.
type InitDataParams struct {
	// ForceReprocess reindexes years whose source file is unchanged.
	ForceReprocess *bool `form:"force_reprocess,omitempty" json:"force_reprocess,omitempty"`
}

// UploadPDFParams defines parameters for UploadPDF.
type UploadPDFParams struct {
	// Overwrite replaces an existing file with the same name.
	Overwrite *bool `form:"overwrite,omitempty" json:"overwrite,omitempty"`
}

// GetUsageParams defines parameters for GetUsage.
type GetUsageParams struct {
	// Period is the budget window, "day" (default) or "month".
	Period *string `form:"period,omitempty" json:"period,omitempty"`
}

// ServerInterface is the set of handlers behind the HTTP API.
type ServerInterface interface {
	// (GET /health)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	Metrics(w http.ResponseWriter, r *http.Request)
	// (GET /api)
	APIInfo(w http.ResponseWriter, r *http.Request)
	// (POST /api/query)
	Query(w http.ResponseWriter, r *http.Request)
	// (GET /api/stats)
	GetStats(w http.ResponseWriter, r *http.Request)
	// (GET /api/years)
	GetYears(w http.ResponseWriter, r *http.Request)
	// (GET /api/example-queries)
	GetExampleQueries(w http.ResponseWriter, r *http.Request)
	// (POST /api/init-data)
	InitData(w http.ResponseWriter, r *http.Request, params InitDataParams)
	// (POST /api/upload-pdf)
	UploadPDF(w http.ResponseWriter, r *http.Request, params UploadPDFParams)
	// (GET /api/files)
	ListFiles(w http.ResponseWriter, r *http.Request)
	// (GET /api/files/info)
	GetFilesInfo(w http.ResponseWriter, r *http.Request)
	// (POST /api/files/cleanup)
	CleanupFiles(w http.ResponseWriter, r *http.Request)
	// (DELETE /api/files/{filename})
	DeleteFile(w http.ResponseWriter, r *http.Request, filename string)
	// (GET /api/usage)
	GetUsage(w http.ResponseWriter, r *http.Request, params GetUsageParams)
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseRouter       chi.Router
	Middlewares      []func(http.Handler) http.Handler
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError reports a parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// serverInterfaceWrapper binds request parameters before calling the handler.
type serverInterfaceWrapper struct {
	handler          ServerInterface
	middlewares      []func(http.Handler) http.Handler
	errorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (sw *serverInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.Handler) {
	for _, m := range sw.middlewares {
		h = m(h)
	}
	h.ServeHTTP(w, r)
}

func (sw *serverInterfaceWrapper) plain(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw.serve(w, r, http.HandlerFunc(fn))
	}
}

// InitData binds force_reprocess.
func (sw *serverInterfaceWrapper) InitData(w http.ResponseWriter, r *http.Request) {
	var params InitDataParams

	err := runtime.BindQueryParameter("form", true, false, "force_reprocess", r.URL.Query(), &params.ForceReprocess)
	if err != nil {
		sw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "force_reprocess", Err: err})
		return
	}

	sw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw.handler.InitData(w, r, params)
	}))
}

// UploadPDF binds overwrite.
func (sw *serverInterfaceWrapper) UploadPDF(w http.ResponseWriter, r *http.Request) {
	var params UploadPDFParams

	err := runtime.BindQueryParameter("form", true, false, "overwrite", r.URL.Query(), &params.Overwrite)
	if err != nil {
		sw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "overwrite", Err: err})
		return
	}

	sw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw.handler.UploadPDF(w, r, params)
	}))
}

// DeleteFile binds the filename path segment.
func (sw *serverInterfaceWrapper) DeleteFile(w http.ResponseWriter, r *http.Request) {
	var filename string

	err := runtime.BindStyledParameterWithOptions("simple", "filename", chi.URLParam(r, "filename"), &filename,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		sw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "filename", Err: err})
		return
	}

	sw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw.handler.DeleteFile(w, r, filename)
	}))
}

// GetUsage binds period.
func (sw *serverInterfaceWrapper) GetUsage(w http.ResponseWriter, r *http.Request) {
	var params GetUsageParams

	err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &params.Period)
	if err != nil {
		sw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "period", Err: err})
		return
	}

	sw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw.handler.GetUsage(w, r, params)
	}))
}

// Handler creates http.Handler with routing matching the API.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerWithOptions registers every route on options.BaseRouter (a new router when nil).
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := &serverInterfaceWrapper{
		handler:          si,
		middlewares:      options.Middlewares,
		errorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Get("/health", wrapper.plain(si.HealthCheck))
	r.Get("/metrics", wrapper.plain(si.Metrics))
	r.Get("/api", wrapper.plain(si.APIInfo))
	r.Post("/api/query", wrapper.plain(si.Query))
	r.Get("/api/stats", wrapper.plain(si.GetStats))
	r.Get("/api/years", wrapper.plain(si.GetYears))
	r.Get("/api/example-queries", wrapper.plain(si.GetExampleQueries))
	r.Post("/api/init-data", wrapper.InitData)
	r.Post("/api/upload-pdf", wrapper.UploadPDF)
	r.Get("/api/files", wrapper.plain(si.ListFiles))
	r.Get("/api/files/info", wrapper.plain(si.GetFilesInfo))
	r.Post("/api/files/cleanup", wrapper.plain(si.CleanupFiles))
	r.Delete("/api/files/{filename}", wrapper.DeleteFile)
	r.Get("/api/usage", wrapper.GetUsage)

	return r
}
