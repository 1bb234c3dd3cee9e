package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bundled/internal/manager"
	"bundled/internal/manifest"
	"bundled/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Ready() bool
	Lookup(name string) *manifest.Bundle
	Info(name string) (types.Bundle, error)
	Infos() ([]types.Bundle, error)
	Cache(b *manifest.Bundle) bool
	Request(b *manifest.Bundle) bool
	Unload(b *manifest.Bundle)
	IsReady(b *manifest.Bundle) bool
	CacheFor(r manager.Resolver) bool
	RequestFor(r manager.Resolver) bool
	DownloadStateFor(r manager.Resolver) manager.DownloadState
	Status() types.StatusResponse
}

// pollInterval is how often a ?wait= request re-checks readiness.
var pollInterval = 25 * time.Millisecond

// NewMux constructs the HTTP router with default options.
func NewMux(svc Service) http.Handler { return NewMuxWith(svc, Options{}) }

// NewMuxWith constructs the HTTP router with all endpoints.
func NewMuxWith(svc Service, opts Options) http.Handler {
	opts = opts.withDefaults()
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if mw := opts.corsMiddleware(); mw != nil {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no manifest"))
	})
	r.Handle("/metrics", promhttp.Handler())
	MountSwagger(r)

	h := &handlers{svc: svc, opts: opts}
	r.Group(func(r chi.Router) {
		r.Use(inflightMiddleware)
		r.Get("/status", h.status)
		r.Get("/bundles", h.listBundles)
		r.Get("/bundles/{name}", h.getBundle)
		r.Post("/bundles/{name}/cache", h.cacheBundle)
		r.Post("/bundles/{name}/request", h.requestBundle)
		r.Post("/bundles/{name}/unload", h.unloadBundle)
		r.Post("/cache", h.cacheNames)
		r.Post("/request", h.requestNames)
		r.Post("/download-state", h.downloadState)
	})
	return r
}

type handlers struct {
	svc  Service
	opts Options
}

// @Summary      Manager status
// @Description  Queue, loaded set, per-status counts and counters.
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Status())
}

// @Summary      List bundles
// @Tags         bundles
// @Produce      json
// @Success      200  {object}  types.BundlesResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /bundles [get]
func (h *handlers) listBundles(w http.ResponseWriter, r *http.Request) {
	bs, err := h.svc.Infos()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, types.BundlesResponse{Bundles: bs})
}

// @Summary      Get bundle
// @Tags         bundles
// @Produce      json
// @Param        name  path  string  true  "Bundle name"
// @Success      200  {object}  types.Bundle
// @Failure      404  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /bundles/{name} [get]
func (h *handlers) getBundle(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Info(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, info)
}

// bundle resolves the {name} path parameter or writes an error.
func (h *handlers) bundle(w http.ResponseWriter, r *http.Request) (*manifest.Bundle, bool) {
	name := chi.URLParam(r, "name")
	if !h.svc.Ready() {
		writeError(w, manager.ErrNoBundles)
		return nil, false
	}
	b := h.svc.Lookup(name)
	if b == nil {
		writeError(w, manager.ErrBundleNotFound(name))
		return nil, false
	}
	return b, true
}

// knownNames writes a 404 naming every entry of names missing from the manifest.
func (h *handlers) knownNames(w http.ResponseWriter, names []string) bool {
	var missing []string
	for _, n := range names {
		if h.svc.Lookup(n) == nil {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		writeError(w, manager.ErrBundleNotFound(strings.Join(missing, ", ")))
		return false
	}
	return true
}

func (h *handlers) action(w http.ResponseWriter, b *manifest.Bundle, satisfied bool) {
	resp := types.ActionResponse{Name: b.Name, Satisfied: satisfied}
	if info, err := h.svc.Info(b.Name); err == nil {
		resp.Status = info.State
	}
	writeJSON(w, resp)
}

// @Summary      Cache a bundle
// @Description  Queues the bundle and its dependencies for download. Satisfied is true when all are cached.
// @Tags         bundles
// @Produce      json
// @Param        name  path  string  true  "Bundle name"
// @Success      200  {object}  types.ActionResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /bundles/{name}/cache [post]
func (h *handlers) cacheBundle(w http.ResponseWriter, r *http.Request) {
	b, ok := h.bundle(w, r)
	if !ok {
		return
	}
	h.action(w, b, h.svc.Cache(b))
}

// @Summary      Request a bundle
// @Description  Marks the bundle and its dependencies as requested. With ?wait=<duration> the call blocks until ready or the wait elapses.
// @Tags         bundles
// @Produce      json
// @Param        name  path   string  true   "Bundle name"
// @Param        wait  query  string  false  "Maximum wait, e.g. 5s"
// @Success      200  {object}  types.ActionResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /bundles/{name}/request [post]
func (h *handlers) requestBundle(w http.ResponseWriter, r *http.Request) {
	wait, err := h.parseWait(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, ok := h.bundle(w, r)
	if !ok {
		return
	}
	satisfied := h.svc.Request(b)
	if !satisfied && wait > 0 {
		satisfied = h.waitReady(r.Context(), b, wait)
	}
	h.action(w, b, satisfied)
}

// waitReady polls readiness until b is ready, the wait elapses, the client
// goes away or the server shuts down.
func (h *handlers) waitReady(reqCtx context.Context, b *manifest.Bundle, wait time.Duration) bool {
	ctx, stop := withShutdown(reqCtx)
	defer stop()
	ctx, cancelWait := context.WithTimeout(ctx, wait)
	defer cancelWait()
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		if h.svc.IsReady(b) {
			return true
		}
		select {
		case <-ctx.Done():
			return h.svc.IsReady(b)
		case <-t.C:
		}
	}
}

func (h *handlers) parseWait(r *http.Request) (time.Duration, error) {
	v := r.URL.Query().Get("wait")
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, errors.New("invalid wait duration")
	}
	return min(d, h.opts.MaxRequestWait), nil
}

// @Summary      Unload a bundle
// @Description  Clears the request flag and releases the in-memory form. The cached copy is kept.
// @Tags         bundles
// @Produce      json
// @Param        name  path  string  true  "Bundle name"
// @Success      200  {object}  types.ActionResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /bundles/{name}/unload [post]
func (h *handlers) unloadBundle(w http.ResponseWriter, r *http.Request) {
	b, ok := h.bundle(w, r)
	if !ok {
		return
	}
	h.svc.Unload(b)
	h.action(w, b, true)
}

// decodeNames reads a NamesRequest body. It writes the error response itself.
func (h *handlers) decodeNames(w http.ResponseWriter, r *http.Request) (types.NamesRequest, bool) {
	var req types.NamesRequest
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			writeJSONError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
			return req, false
		}
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeJSONError(w, http.StatusBadRequest, "empty request body")
		default:
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		}
		return req, false
	}
	return req, true
}

// @Summary      Cache a set of bundles
// @Tags         bundles
// @Accept       json
// @Produce      json
// @Param        body  body  types.NamesRequest  true  "Bundle names"
// @Success      200  {object}  types.ActionResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /cache [post]
func (h *handlers) cacheNames(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeNames(w, r)
	if !ok {
		return
	}
	if !h.svc.Ready() {
		writeError(w, manager.ErrNoBundles)
		return
	}
	if !h.knownNames(w, req.Names) {
		return
	}
	writeJSON(w, types.ActionResponse{Satisfied: h.svc.CacheFor(manager.Names(req.Names...))})
}

// @Summary      Request a set of bundles
// @Tags         bundles
// @Accept       json
// @Produce      json
// @Param        body  body  types.NamesRequest  true  "Bundle names"
// @Success      200  {object}  types.ActionResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /request [post]
func (h *handlers) requestNames(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeNames(w, r)
	if !ok {
		return
	}
	if !h.svc.Ready() {
		writeError(w, manager.ErrNoBundles)
		return
	}
	if !h.knownNames(w, req.Names) {
		return
	}
	writeJSON(w, types.ActionResponse{Satisfied: h.svc.RequestFor(manager.Names(req.Names...))})
}

// @Summary      Aggregate download state
// @Description  Before a manifest is set the status is error_no_bundles.
// @Tags         bundles
// @Accept       json
// @Produce      json
// @Param        body  body  types.NamesRequest  true  "Bundle names"
// @Success      200  {object}  types.DownloadStateResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Router       /download-state [post]
func (h *handlers) downloadState(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeNames(w, r)
	if !ok {
		return
	}
	if h.svc.Ready() && !h.knownNames(w, req.Names) {
		return
	}
	ds := h.svc.DownloadStateFor(manager.Names(req.Names...))
	writeJSON(w, types.DownloadStateResponse{
		Status:         ds.Status.String(),
		BytesAvailable: ds.BytesAvailable,
		BytesTotal:     ds.BytesTotal,
		Progress:       ds.Progress(),
	})
}
