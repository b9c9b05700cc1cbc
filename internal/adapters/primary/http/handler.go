package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"go-emotion-bot/internal/adapters/secondary/wshub"
	"go-emotion-bot/internal/core/domain"
	"go-emotion-bot/internal/core/ports"
)

type Handler struct {
	service ports.BotService
	hub     *wshub.Hub
}

func NewHandler(service ports.BotService, hub *wshub.Hub) *Handler {
	return &Handler{service: service, hub: hub}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /bots/join", h.join)
	mux.HandleFunc("POST /bots/leave/{botId}", h.leave)
	mux.HandleFunc("GET /bots/status/{botId}", h.status)
	mux.HandleFunc("GET /bots/analytics/{botId}", h.analytics)
	mux.HandleFunc("GET /bots/participants/{botId}", h.participants)
	mux.HandleFunc("GET /bots/debug-images/{botId}", h.debugImages)
	mux.HandleFunc("GET /bots", h.list)
	mux.HandleFunc("POST /bots/stop-all", h.stopAll)
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /ws/{sessionId}", h.subscribe)
}

type joinRequest struct {
	MeetingID       string `json:"meeting_id"`
	MeetingPassword string `json:"meeting_password"`
	SessionID       string `json:"session_id"`
	SessionName     string `json:"session_name"`
	BotName         string `json:"bot_name"`
	CaptureInterval int    `json:"capture_interval"` // seconds
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Create(r.Context(), domain.BotConfig{
		MeetingID:       req.MeetingID,
		Passcode:        req.MeetingPassword,
		SessionID:       req.SessionID,
		SessionName:     req.SessionName,
		BotName:         req.BotName,
		CaptureInterval: time.Duration(req.CaptureInterval) * time.Second,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) leave(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("botId")
	if botID == "" {
		writeError(w, http.StatusBadRequest, "botId is required")
		return
	}

	if err := h.service.Stop(r.Context(), botID); err != nil {
		if errors.Is(err, ports.ErrBotNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Bot stopped",
		"bot_id":  botID,
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("botId")
	if botID == "" {
		writeError(w, http.StatusBadRequest, "botId is required")
		return
	}

	snap, err := h.service.Status(r.Context(), botID)
	if err != nil {
		if errors.Is(err, ports.ErrBotNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("botId")
	if botID == "" {
		writeError(w, http.StatusBadRequest, "botId is required")
		return
	}

	analytics, err := h.service.Analytics(r.Context(), botID)
	if err != nil {
		if errors.Is(err, ports.ErrBotNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, analytics)
}

func (h *Handler) participants(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("botId")
	if botID == "" {
		writeError(w, http.StatusBadRequest, "botId is required")
		return
	}

	snap, err := h.service.Status(r.Context(), botID)
	if err != nil {
		if errors.Is(err, ports.ErrBotNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"participants":      snap.Participants,
		"participant_count": snap.ParticipantCount,
		"total_detections":  snap.TotalDetections,
	})
}

func (h *Handler) debugImages(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("botId")
	if botID == "" {
		writeError(w, http.StatusBadRequest, "botId is required")
		return
	}

	images, err := h.service.DebugImages(r.Context(), botID)
	if err != nil {
		if errors.Is(err, ports.ErrBotNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, images)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"platform":    runtime.GOOS,
		"active_bots": len(h.service.List(r.Context())),
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"bots": h.service.List(r.Context()),
	})
}

func (h *Handler) stopAll(w http.ResponseWriter, r *http.Request) {
	h.service.StopAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "All bots stopped",
	})
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	// Subscribe hijacks the connection; errors after upgrade are its own.
	_ = h.hub.Subscribe(w, r, sessionID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
