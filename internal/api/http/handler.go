package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/logger"
	"equiptrack-backend/internal/security"
	"equiptrack-backend/internal/service"
)

type actorKey struct{}

// Handler serves health and read-only workflow endpoints
type Handler struct {
	workflow *service.Workflow
	tokens   security.TokenManager
	// ping reports backing store health; nil means always healthy.
	ping func(context.Context) error
}

func NewHandler(workflow *service.Workflow, tokens security.TokenManager, ping func(context.Context) error) *Handler {
	return &Handler{workflow: workflow, tokens: tokens, ping: ping}
}

// Router builds the mux with every route registered
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.authenticate)
	api.HandleFunc("/history/{kind}/{id:[0-9]+}", h.HandleHistory).Methods(http.MethodGet)
	api.HandleFunc("/equipment/{id:[0-9]+}/transitions", h.HandleTransitions).Methods(http.MethodGet)
	return r
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			logger.Warn("Health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleHistory returns a subject's ledger entries. ?order=desc lists newest first.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		writeError(w, domain.NewError(domain.ErrInvalidInput, "", 0, ""))
		return
	}
	order := domain.SortOrder(r.URL.Query().Get("order"))
	if order == "" {
		order = domain.OldestFirst
	}

	seq, err := h.workflow.ListHistory(r.Context(), actorFrom(r), domain.SubjectKind(vars["kind"]), id, order)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := service.Collect(seq)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type transitionsResponse struct {
	Status         domain.EquipmentStatus   `json:"status"`
	AllowedTargets []domain.EquipmentStatus `json:"allowed_targets"`
}

func (h *Handler) HandleTransitions(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, domain.NewError(domain.ErrInvalidInput, domain.SubjectEquipment, 0, ""))
		return
	}
	st, targets, err := h.workflow.QueryEquipment(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionsResponse{Status: st, AllowedTargets: targets})
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: "bearer token required"})
			return
		}
		claims, err := h.tokens.ValidateToken(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: err.Error()})
			return
		}
		actor := service.Actor{ID: claims.UserID, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(r *http.Request) service.Actor {
	actor, _ := r.Context().Value(actorKey{}).(service.Actor)
	return actor
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var kindStatus = map[domain.ErrorKind]int{
	domain.ErrInvalidInput:        http.StatusBadRequest,
	domain.ErrNotFound:            http.StatusNotFound,
	domain.ErrForbidden:           http.StatusForbidden,
	domain.ErrConcurrencyConflict: http.StatusConflict,
}

func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	code, ok := kindStatus[kind]
	if !ok {
		logger.Error("HTTP request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
		return
	}
	writeJSON(w, code, errorBody{Error: string(kind), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response", "error", err)
	}
}
