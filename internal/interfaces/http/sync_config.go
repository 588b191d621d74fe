package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"finsync/internal/domain/simplefin"
)

// SyncConfigService is the part of simplefin.ConfigService the API needs.
type SyncConfigService interface {
	Create(ctx context.Context, params simplefin.CreateConfigParams) (*simplefin.SyncConfig, error)
	Get(ctx context.Context, id int64) (*simplefin.SyncConfig, error)
	List(ctx context.Context) ([]*simplefin.SyncConfig, error)
	Update(ctx context.Context, id int64, params simplefin.UpdateConfigParams) (*simplefin.SyncConfig, error)
	Delete(ctx context.Context, id int64) error
	Validate(ctx context.Context, id int64) (*simplefin.SyncConfig, error)
	Trigger(ctx context.Context, id int64, opts simplefin.RunSyncOptions) (*simplefin.SyncConfig, error)
	ListRuns(ctx context.Context, configID int64, limit int) ([]*simplefin.SyncRun, error)
	RawResponse(ctx context.Context, runID string) (*simplefin.SyncRun, []byte, error)
}

type SyncConfigHandler struct {
	service SyncConfigService
}

func NewSyncConfigHandler(service SyncConfigService) *SyncConfigHandler {
	return &SyncConfigHandler{service: service}
}

// SyncConfigResponse hides credentials and only says whether they are usable.
type SyncConfigResponse struct {
	*simplefin.SyncConfig
	HasCredentials bool `json:"hasCredentials"`
}

func toSyncConfigResponse(cfg *simplefin.SyncConfig) SyncConfigResponse {
	return SyncConfigResponse{SyncConfig: cfg, HasCredentials: cfg.HasCredentials()}
}

// RunSyncRequest is the optional body of POST /api/sync-configs/{id}/run.
type RunSyncRequest struct {
	FromDate   string `json:"fromDate"`
	CaptureRaw bool   `json:"captureRaw"`
}

// HandleSyncConfigs handles GET (list) and POST (create).
func (h *SyncConfigHandler) HandleSyncConfigs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleCreate(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleSyncConfigByID handles GET, PUT and DELETE on one config.
func (h *SyncConfigHandler) HandleSyncConfigByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid sync config ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		cfg, err := h.service.Get(r.Context(), id)
		if err != nil {
			h.writeServiceError(w, "get sync config", err)
			return
		}
		writeJSON(w, http.StatusOK, toSyncConfigResponse(cfg))
	case http.MethodPut:
		h.handleUpdate(w, r, id)
	case http.MethodDelete:
		if err := h.service.Delete(r.Context(), id); err != nil {
			h.writeServiceError(w, "delete sync config", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *SyncConfigHandler) handleList(w http.ResponseWriter, r *http.Request) {
	configs, err := h.service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, "list sync configs", err)
		return
	}
	resp := make([]SyncConfigResponse, 0, len(configs))
	for _, cfg := range configs {
		resp = append(resp, toSyncConfigResponse(cfg))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SyncConfigHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var params simplefin.CreateConfigParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := h.service.Create(r.Context(), params)
	if err != nil {
		// The config is stored even when the setup token could not be claimed.
		if cfg != nil && errors.Is(err, simplefin.ErrCredentials) {
			log.Printf("Warning: sync config %d created without credentials: %v", cfg.ID, err)
			writeJSON(w, http.StatusCreated, toSyncConfigResponse(cfg))
			return
		}
		h.writeServiceError(w, "create sync config", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSyncConfigResponse(cfg))
}

func (h *SyncConfigHandler) handleUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	var params simplefin.UpdateConfigParams
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := h.service.Update(r.Context(), id, params)
	if err != nil {
		h.writeServiceError(w, "update sync config", err)
		return
	}
	writeJSON(w, http.StatusOK, toSyncConfigResponse(cfg))
}

// HandleRun queues a sync for the config. Responds 202 once queued.
func (h *SyncConfigHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid sync config ID")
		return
	}

	var req RunSyncRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	opts := simplefin.RunSyncOptions{CaptureRaw: req.CaptureRaw}
	if req.FromDate != "" {
		from, err := parseDate(req.FromDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid fromDate (use YYYY-MM-DD or RFC3339)")
			return
		}
		opts.FromDate = &from
	}

	cfg, err := h.service.Trigger(r.Context(), id, opts)
	if err != nil {
		h.writeServiceError(w, "trigger sync", err)
		return
	}
	writeJSON(w, http.StatusAccepted, toSyncConfigResponse(cfg))
}

// HandleValidate exchanges the setup token or re-checks stored credentials.
func (h *SyncConfigHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid sync config ID")
		return
	}

	cfg, err := h.service.Validate(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "validate sync config", err)
		return
	}
	writeJSON(w, http.StatusOK, toSyncConfigResponse(cfg))
}

// HandleRuns lists the most recent runs of a config, newest first.
func (h *SyncConfigHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	id, ok := pathInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid sync config ID")
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.service.ListRuns(r.Context(), id, limit)
	if err != nil {
		h.writeServiceError(w, "list sync runs", err)
		return
	}
	if runs == nil {
		runs = []*simplefin.SyncRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleRawResponse downloads the captured aggregator payload of a run.
// The payload is handed out once.
func (h *SyncConfigHandler) HandleRawResponse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	runID := r.PathValue("id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	run, raw, err := h.service.RawResponse(r.Context(), runID)
	if err != nil {
		h.writeServiceError(w, "get raw response", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="simplefin-%s.json"`, run.ID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(raw); err != nil {
		log.Printf("Error writing raw response for run %s: %v", run.ID, err)
	}
}

func (h *SyncConfigHandler) writeServiceError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, simplefin.ErrConfigNotFound):
		writeError(w, http.StatusNotFound, "Sync config not found")
	case errors.Is(err, simplefin.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "Sync run not found")
	case errors.Is(err, simplefin.ErrRawUnavailable):
		writeError(w, http.StatusNotFound, simplefin.ErrRawUnavailable.Error())
	case errors.Is(err, simplefin.ErrInvalidInput), errors.Is(err, simplefin.ErrUnsupportedProvider):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, simplefin.ErrSyncInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, simplefin.ErrCredentials):
		writeError(w, http.StatusBadGateway, "Could not fetch credentials")
	default:
		log.Printf("Failed to %s: %v", action, err)
		writeError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}
