package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ddallabenetta/meet-transcriber-v3/internal/capture"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/config"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/llm"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/session"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/storage/sqlite"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/transcription"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/websocket"
	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	controller      *session.Controller
	devices         *capture.Registry
	meetingStorage  *sqlite.MeetingStorage
	settingsStorage *sqlite.SettingsStorage
	transcriber     *transcription.Service
	llmService      *llm.Service
	config          *config.Config
	logger          *logger.Logger
	wsServer        *websocket.Server
}

// NewHandler creates a new API handler
func NewHandler(
	controller *session.Controller,
	devices *capture.Registry,
	meetingStorage *sqlite.MeetingStorage,
	settingsStorage *sqlite.SettingsStorage,
	transcriber *transcription.Service,
	llmService *llm.Service,
	cfg *config.Config,
	log *logger.Logger,
	wsServer *websocket.Server,
) *Handler {
	return &Handler{
		controller:      controller,
		devices:         devices,
		meetingStorage:  meetingStorage,
		settingsStorage: settingsStorage,
		transcriber:     transcriber,
		llmService:      llmService,
		config:          cfg,
		logger:          log.Named("api-handler"),
		wsServer:        wsServer,
	}
}

// ErrorResponse is the JSON body of a failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, ErrorResponse{Error: err.Error()})
}

// --- Session ---

type startSessionRequest struct {
	Title    string `json:"title"`
	DeviceID string `json:"device_id"`
	Live     bool   `json:"live"`
}

// StartSession starts a new recording session
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	language := ""
	if settings, err := h.settingsStorage.GetAppSettings(); err == nil && settings.DefaultLanguage != nil {
		language = *settings.DefaultLanguage
	}

	meeting, err := h.controller.Start(r.Context(), session.StartOptions{
		Title:    req.Title,
		DeviceID: req.DeviceID,
		Live:     req.Live,
		Language: language,
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionActive), errors.Is(err, session.ErrOperationInFlight):
			writeError(w, http.StatusConflict, err)
		default:
			h.logger.Error("Failed to start session", logger.Error(err))
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	h.wsServer.BroadcastEvent(websocket.MessageTypeSessionStatus, map[string]any{
		"state":      session.StateRecording,
		"meeting_id": meeting.ID,
	})
	WriteJSON(w, http.StatusCreated, meeting)
}

// StopSession stops the active recording session
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	status := h.controller.Status()
	audioPath, err := h.controller.Stop(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoActiveSession), errors.Is(err, session.ErrOperationInFlight):
			writeError(w, http.StatusConflict, err)
			return
		default:
			// capture teardown failed but the session still settled; report
			// the error with the meeting id so the client can recover
			h.logger.Error("Session stop reported error", logger.Error(err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	h.wsServer.BroadcastEvent(websocket.MessageTypeSessionStatus, map[string]any{
		"state":      session.StateIdle,
		"meeting_id": status.MeetingID,
	})
	h.broadcastMeetingUpdate(status.MeetingID)

	WriteJSON(w, http.StatusOK, map[string]any{
		"meeting_id": status.MeetingID,
		"audio_path": audioPath,
	})
}

// GetSessionStatus returns the session state snapshot
func (h *Handler) GetSessionStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.controller.Status())
}

// GetLiveTranscript returns the transcript accumulated in the active session
func (h *Handler) GetLiveTranscript(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"transcript": h.controller.LiveTranscript(),
	})
}

// --- Meetings ---

// GetMeetings returns all meetings, newest first
func (h *Handler) GetMeetings(w http.ResponseWriter, r *http.Request) {
	meetings, err := h.meetingStorage.GetMeetings()
	if err != nil {
		h.logger.Error("Failed to list meetings", logger.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	WriteJSON(w, http.StatusOK, meetings)
}

// GetMeeting returns a meeting with its transcript and report
func (h *Handler) GetMeeting(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	meeting, err := h.meetingStorage.GetMeeting(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	WriteJSON(w, http.StatusOK, meeting)
}

type updateMeetingRequest struct {
	Title string `json:"title"`
}

// UpdateMeeting renames a meeting
func (h *Handler) UpdateMeeting(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, errors.New("title must not be empty"))
		return
	}

	if _, err := h.meetingStorage.GetMeeting(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	if err := h.meetingStorage.UpdateMeeting(id, sqlite.MeetingUpdate{Title: &req.Title}); err != nil {
		h.logger.Error("Failed to update meeting", logger.String("id", id), logger.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.broadcastMeetingUpdate(id)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMeeting removes a meeting and its recording
func (h *Handler) DeleteMeeting(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.meetingStorage.DeleteMeeting(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TranscribeMeeting runs a full-file transcription of a stored meeting
func (h *Handler) TranscribeMeeting(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	language := ""
	if settings, err := h.settingsStorage.GetAppSettings(); err == nil && settings.DefaultLanguage != nil {
		language = *settings.DefaultLanguage
	}

	result, err := h.transcriber.TranscribeMeeting(r.Context(), id, language)
	if err != nil {
		h.logger.Error("Transcription failed", logger.String("id", id), logger.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.broadcastMeetingUpdate(id)
	WriteJSON(w, http.StatusOK, result)
}

// GenerateReport generates an AI report for a transcribed meeting
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	report, err := h.llmService.GenerateReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		h.logger.Error("Report generation failed", logger.String("id", id), logger.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.broadcastMeetingUpdate(id)
	WriteJSON(w, http.StatusOK, report)
}

// broadcastMeetingUpdate pushes the current meeting row to connected clients
func (h *Handler) broadcastMeetingUpdate(id string) {
	meeting, err := h.meetingStorage.GetMeeting(id)
	if err != nil {
		return
	}
	h.wsServer.BroadcastEvent(websocket.MessageTypeMeetingUpdate, map[string]any{
		"meeting": meeting,
	})
}

// --- Devices ---

// GetDevices returns the last refreshed device list and the selection
func (h *Handler) GetDevices(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"devices":  h.devices.Devices(),
		"selected": h.devices.Selected(),
	})
}

// RefreshDevices re-enumerates audio devices
func (h *Handler) RefreshDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.Refresh(r.Context())
	if err != nil {
		h.logger.Error("Device refresh failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"devices":  devices,
		"selected": h.devices.Selected(),
	})
}

type selectDeviceRequest struct {
	ID string `json:"id"`
}

// SelectDevice records the capture device choice
func (h *Handler) SelectDevice(w http.ResponseWriter, r *http.Request) {
	var req selectDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.devices.Select(req.ID)
	w.WriteHeader(http.StatusNoContent)
}

// --- Settings ---

// GetAppSettings returns the persisted application settings
func (h *Handler) GetAppSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsStorage.GetAppSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	WriteJSON(w, http.StatusOK, settings)
}

// SaveAppSettings persists the application settings
func (h *Handler) SaveAppSettings(w http.ResponseWriter, r *http.Request) {
	var settings sqlite.AppSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.settingsStorage.SaveAppSettings(&settings); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetLLMSettings returns the persisted LLM configuration. The API key is
// masked; clients only learn whether one is set.
func (h *Handler) GetLLMSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsStorage.GetLLMSettings(
		h.config.LLM.Provider, h.config.LLM.Model, h.config.LLM.BaseURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	hasKey := settings.APIKey != nil && *settings.APIKey != ""
	settings.APIKey = nil
	WriteJSON(w, http.StatusOK, map[string]any{
		"settings":    settings,
		"has_api_key": hasKey,
	})
}

// SaveLLMSettings persists the LLM configuration
func (h *Handler) SaveLLMSettings(w http.ResponseWriter, r *http.Request) {
	var settings sqlite.LLMSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.settingsStorage.SaveLLMSettings(&settings); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetDefaultSystemPrompt returns the built-in report prompt
func (h *Handler) GetDefaultSystemPrompt(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"system_prompt": llm.DefaultSystemPrompt,
	})
}

// GetWhisperModels returns the selectable speech-to-text model catalog
func (h *Handler) GetWhisperModels(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, transcription.AvailableModels())
}

// GetDataDir returns where recordings and the database live
func (h *Handler) GetDataDir(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"data_dir":       h.config.Storage.DataDir,
		"recordings_dir": h.config.Capture.RecordingsDir,
	})
}

// HandleWebSocket upgrades the connection and attaches it to the hub
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}
