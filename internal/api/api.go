// Package api implements the HTTP surface (spec §4.4, §6.1): submission,
// status, cancellation, deletion, and byte-range artifact streaming. The
// router shape — a plain http.ServeMux wrapped by one logging/content-type
// middleware — is grounded on the teacher's Server.Start in
// mcpserver/server.go, adapted from its single MCP endpoint to a REST
// resource tree using Go 1.22's method+pattern mux routing.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/slidecaster/slidecaster/internal/admission"
	"github.com/slidecaster/slidecaster/internal/jobs"
	"github.com/slidecaster/slidecaster/internal/recordstore"
)

// Admitter is the subset of the admission controller the API needs.
type Admitter interface {
	Admit(ctx context.Context, candidateURL, clientIP string) (jobs.Record, error)
}

// Store is the subset of the record-store client the API needs.
type Store interface {
	GetJob(ctx context.Context, id string) (jobs.Record, error)
	UpdateJob(ctx context.Context, id string, patch jobs.Patch) (jobs.Record, error)
	DeleteJob(ctx context.Context, id string) error
}

// Config carries the API server's tunables.
type Config struct {
	Port     int
	DataRoot string
}

// Server is the HTTP API of spec §6.1.
type Server struct {
	admitter Admitter
	store    Store
	log      *slog.Logger
	cfg      Config
	now      func() time.Time
}

// New builds a Server.
func New(admitter Admitter, store Store, log *slog.Logger, cfg Config) *Server {
	return &Server{admitter: admitter, store: store, log: log, cfg: cfg, now: time.Now}
}

// Handler returns the wrapped mux, suitable for http.ListenAndServe or a
// custom http.Server (so tests can exercise it via httptest without
// binding a port).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", s.handleSubmit)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGet)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancel)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/jobs/{id}/download", s.handleDownload)
	mux.HandleFunc("GET /api/jobs/{id}/video", s.handleDownload)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.InfoContext(r.Context(), "http request", "method", r.Method, "path", r.URL.Path)
		mux.ServeHTTP(w, r)
	})
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type submitRequest struct {
	URL string `json:"url"`
}

type submitResponse struct {
	ID       string    `json:"id"`
	Status   string    `json:"status"`
	Progress int       `json:"progress"`
	Created  time.Time `json:"created"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	url, err := parseSubmitURL(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	clientIP := sourceAddress(r)

	record, err := s.admitter.Admit(r.Context(), url, clientIP)
	if err != nil {
		s.writeAdmissionError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		ID:       record.ID,
		Status:   string(record.Status),
		Progress: record.Progress,
		Created:  record.Created,
	})
}

// parseSubmitURL accepts either a JSON body with a "url" field or a
// form-encoded url= value, per spec §4.4.
func parseSubmitURL(r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", fmt.Errorf("invalid JSON body: %w", err)
		}
		return strings.TrimSpace(req.URL), nil
	}

	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("invalid form body: %w", err)
	}
	return strings.TrimSpace(r.FormValue("url")), nil
}

// sourceAddress prefers X-Forwarded-For's first entry, falling back to the
// transport peer address (spec §4.4, §6.1).
func sourceAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeAdmissionError maps an admission refusal category to its HTTP
// status code (spec §6.1's submit failure table).
func (s *Server) writeAdmissionError(w http.ResponseWriter, r *http.Request, err error) {
	var refusal *admission.RefusalError
	if errors.As(err, &refusal) {
		switch {
		case errors.Is(refusal, admission.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, refusal.Reason)
		case errors.Is(refusal, admission.ErrQueueFull):
			writeError(w, http.StatusServiceUnavailable, refusal.Reason)
		case errors.Is(refusal, admission.ErrQualityTooLow):
			writeError(w, http.StatusBadRequest, refusal.Reason)
		case errors.Is(refusal, admission.ErrProbeUnavailable):
			writeError(w, http.StatusBadGateway, refusal.Reason)
		default:
			writeError(w, http.StatusInternalServerError, refusal.Reason)
		}
		return
	}

	s.log.ErrorContext(r.Context(), "admission failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	record, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	record, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !record.Status.Cancellable() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("job is %s, cannot be cancelled", record.Status))
		return
	}

	patch := jobs.PatchCancelled(s.now())
	if _, err := s.store.UpdateJob(r.Context(), id, patch); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteJob(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	jobDir := filepath.Join(s.cfg.DataRoot, "jobs", id)
	if err := os.RemoveAll(jobDir); err != nil {
		s.log.WarnContext(r.Context(), "delete: remove artifact directory failed", "job_id", id, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	record, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if record.Status != jobs.StatusCompleted {
		writeError(w, http.StatusBadRequest, "job is not completed")
		return
	}

	path := filepath.Join(s.cfg.DataRoot, record.VideoPath)
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "artifact file missing")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusNotFound, "artifact file missing")
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "video/mp4"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")

	serveRange(w, r, f, info.Size())
}

// serveRange implements spec §4.4/§8's single-range byte-serving contract.
func serveRange(w http.ResponseWriter, r *http.Request, f *os.File, size int64) {
	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, f)
		return
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		if errors.Is(err, errRangeNotSatisfiable) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		// Malformed/unparseable range header: spec §4.4 falls back to a
		// full 200 response rather than rejecting the request.
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, f)
		return
	}

	if _, err := f.Seek(start, 0); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	io.CopyN(w, f, length)
}

// errRangeNotSatisfiable marks a well-formed range that falls outside the
// file (spec §4.4: start beyond size-1). Callers fall back to a full 200
// response for any other parse error, reserving 416 for this case alone.
var errRangeNotSatisfiable = errors.New("range not satisfiable")

// parseRange parses a single-range "bytes=start-end" header, clamping end
// to size-1 (spec §4.4). end may be omitted ("bytes=100-"), meaning
// "through the end of the file".
func parseRange(header string, size int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range unit")
	}
	if strings.Contains(spec, ",") {
		return 0, 0, fmt.Errorf("multi-range requests not supported")
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed range")
	}

	start, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed range start: %w", err)
	}
	if start > size-1 {
		return 0, 0, fmt.Errorf("range start beyond file size: %w", errRangeNotSatisfiable)
	}

	if parts[1] == "" {
		end = size - 1
	} else {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("malformed range end: %w", err)
		}
	}
	if end > size-1 {
		end = size - 1
	}
	if end < start {
		return 0, 0, fmt.Errorf("range end before start")
	}
	return start, end, nil
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var rsErr *recordstore.Error
	if errors.As(err, &rsErr) && rsErr.Kind == recordstore.KindNotFound {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.log.ErrorContext(r.Context(), "record store operation failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
