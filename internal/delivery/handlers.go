package delivery

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/line_tutor/internal/ai"
	"github.com/Vovarama1992/line_tutor/internal/conversation"
	"github.com/Vovarama1992/line_tutor/internal/transcript"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

type ConversationReader interface {
	Snapshot(userID string) ([]conversation.Turn, bool)
	Len() int
	Window() int
}

type ModelInfo interface {
	Models() []string
	Policy() ai.Policy
}

type TranscriptReader interface {
	History(ctx context.Context, userID string, limit int) ([]transcript.Exchange, error)
	Users(ctx context.Context) ([]transcript.UserChannels, error)
}

type AdminHandler struct {
	store       ConversationReader
	models      ModelInfo
	transcripts TranscriptReader
	log         *logger.ZapLogger
}

func NewAdminHandler(store ConversationReader, models ModelInfo, transcripts TranscriptReader, log *logger.ZapLogger) *AdminHandler {
	return &AdminHandler{
		store:       store,
		models:      models,
		transcripts: transcripts,
		log:         log,
	}
}

// GET /admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"users":  h.store.Len(),
		"window": h.store.Window(),
		"models": h.models.Models(),
		"policy": string(h.models.Policy()),
	})
}

// GET /admin/conversations/{user_id}
func (h *AdminHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	turns, ok := h.store.Snapshot(userID)
	if !ok {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"turns":   turns,
	})
}

// GET /admin/transcripts/{user_id}?limit=n
func (h *AdminHandler) Transcripts(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	history, err := h.transcripts.History(r.Context(), userID, limit)
	if err != nil {
		h.archiveError(w, "history query failed", err)
		return
	}
	if history == nil {
		history = []transcript.Exchange{}
	}
	writeJSON(w, http.StatusOK, history)
}

// GET /admin/users
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.transcripts.Users(r.Context())
	if err != nil {
		h.archiveError(w, "users query failed", err)
		return
	}
	if users == nil {
		users = []transcript.UserChannels{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) archiveError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, transcript.ErrArchiveDisabled) {
		http.Error(w, "transcript archive disabled", http.StatusServiceUnavailable)
		return
	}
	h.log.Log(logger.LogEntry{Level: "error", Message: msg, Error: err, Service: "admin"})
	http.Error(w, "db error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
