package daemon

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
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cellar/internal/api"
	"cellar/internal/config"
	"cellar/internal/logging"
	"cellar/internal/services"
)

const (
	maxJSONBodyBytes = 1 << 20
	// multipartOverhead covers form boundaries and the review field.
	multipartOverhead = 64 << 10
)

type apiServer struct {
	bind          string
	logger        *slog.Logger
	daemon        *Daemon
	svc           *api.CellarService
	maxImageBytes int64
	handler       http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	srv := &apiServer{
		bind:          strings.TrimSpace(cfg.Paths.APIBind),
		logger:        logging.NewComponentLogger(logger, "api-server"),
		daemon:        d,
		svc:           d.service,
		maxImageBytes: int64(cfg.Workers.MaxImageBytes),
	}

	metrics, err := newHTTPMetrics(d.registry)
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/scans", srv.handleScan)
	apiMux.HandleFunc("GET /api/wines", srv.handleListWines)
	apiMux.HandleFunc("GET /api/wines/{id}", srv.handleGetWine)
	apiMux.HandleFunc("PATCH /api/wines/{id}", srv.handleUpdateWine)
	apiMux.HandleFunc("DELETE /api/wines/{id}", srv.handleDeleteWine)
	apiMux.HandleFunc("POST /api/wines/{id}/enrich", srv.handleEnrichWine)
	apiMux.HandleFunc("DELETE /api/bottles/{id}", srv.handleDeleteBottle)
	apiMux.HandleFunc("POST /api/labels", srv.handleCreateLabel)
	apiMux.HandleFunc("GET /api/labels", srv.handleListLabels)
	apiMux.HandleFunc("GET /api/labels/{id}", srv.handleGetLabel)
	apiMux.HandleFunc("POST /api/labels/{id}/apply", srv.handleApplyLabel)
	apiMux.HandleFunc("GET /api/status", srv.handleStatus)

	root := http.NewServeMux()
	root.Handle("/api/", authMiddleware(strings.TrimSpace(cfg.Paths.APIToken), apiMux))
	root.Handle("GET /metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	srv.handler = requestMiddleware(srv.logger, metrics, root)
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.logger.Info("api bind empty, http api disabled")
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleScan(w http.ResponseWriter, r *http.Request) {
	var req api.ScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.svc.RecordScan(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *apiServer) handleListWines(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := queryInt(query.Get("limit"), "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := queryInt(query.Get("offset"), "offset")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	wines, err := s.svc.ListWines(r.Context(), api.WineQuery{
		Query:            query.Get("q"),
		PlaceholdersOnly: queryBool(query.Get("placeholders")),
		Limit:            limit,
		Offset:           offset,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.WineListResponse{Wines: wines})
}

func (s *apiServer) handleGetWine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "wine")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	detail, err := s.svc.GetWine(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleUpdateWine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "wine")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.WinePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	wine, err := s.svc.UpdateWine(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, wine)
}

func (s *apiServer) handleDeleteWine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "wine")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.svc.DeleteWine(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleEnrichWine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "wine")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	update, err := s.svc.EnrichWine(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, update)
}

func (s *apiServer) handleDeleteBottle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bottle")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.DeleteBottle(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateLabel accepts either a multipart form with an "image" file
// field or a raw image body. The review flag comes from the "review" form
// field or query parameter.
func (s *apiServer) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	image, wantReview, err := s.readLabelUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	task, err := s.svc.CreateLabelTask(r.Context(), image, wantReview)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, task)
}

func (s *apiServer) readLabelUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool, error) {
	limit := s.maxImageBytes
	if limit <= 0 {
		limit = 8 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	wantReview := queryBool(r.URL.Query().Get("review"))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		image, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, false, uploadError(err)
		}
		return image, wantReview, nil
	}

	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, false, uploadError(err)
	}
	defer r.MultipartForm.RemoveAll()
	if value := r.FormValue("review"); value != "" {
		wantReview = queryBool(value)
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, false, services.Wrap(services.ErrValidation, "api-server", "upload label", "multipart field \"image\" is required", err)
	}
	defer file.Close()
	image, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, false, uploadError(err)
	}
	return image, wantReview, nil
}

func (s *apiServer) handleListLabels(w http.ResponseWriter, r *http.Request) {
	var statuses []string
	for _, value := range r.URL.Query()["status"] {
		statuses = append(statuses, strings.Split(value, ",")...)
	}
	tasks, err := s.svc.ListLabelTasks(r.Context(), statuses)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.LabelTaskListResponse{Tasks: tasks})
}

func (s *apiServer) handleGetLabel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "label task")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	task, err := s.svc.GetLabelTask(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *apiServer) handleApplyLabel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "label task")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.ApplyLabelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.WineID <= 0 {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api-server", "apply label", "wineId is required", nil))
		return
	}
	update, err := s.svc.ApplyLabelTask(r.Context(), id, req.WineID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, update)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := api.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed", "",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.NewErrorResponse(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	decoder.UseNumber()
	if err := decoder.Decode(dst); err != nil {
		return services.Wrap(services.ErrValidation, "api-server", "decode request", "malformed JSON body", err)
	}
	return nil
}

func pathID(r *http.Request, what string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, services.Wrap(services.ErrValidation, "api-server", "parse id", "invalid "+what+" id", nil)
	}
	return id, nil
}

func queryInt(value, name string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "api-server", "parse query", name+" must be an integer", nil)
	}
	return parsed, nil
}

func queryBool(value string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && parsed
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return services.Wrap(services.ErrValidation, "api-server", "upload label", "image too large", err)
	}
	return services.Wrap(services.ErrValidation, "api-server", "upload label", "unreadable upload", err)
}
