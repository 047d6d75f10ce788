package api

import (
	"fmt"

	"github.com/ddallabenetta/meet-transcriber-v3/internal/session"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/websocket"
	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

// WSCommandHandler answers client-initiated requests arriving over an open
// WebSocket connection, so a (re)connecting UI can resync its session view
// without an extra HTTP round trip.
type WSCommandHandler struct {
	controller *session.Controller
	logger     *logger.Logger
}

// NewWSCommandHandler creates the inbound WebSocket message handler
func NewWSCommandHandler(controller *session.Controller, log *logger.Logger) *WSCommandHandler {
	return &WSCommandHandler{
		controller: controller,
		logger:     log.Named("ws-commands"),
	}
}

// HandleMessage dispatches one inbound message. A request is answered on
// the requesting client only, with the same message types the server uses
// for its pushes.
func (h *WSCommandHandler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case websocket.MessageTypeSessionStatus:
		status := h.controller.Status()
		client.SendMessage(&websocket.Message{
			Type: websocket.MessageTypeSessionStatus,
			Data: map[string]any{
				"state":           status.State,
				"meeting_id":      status.MeetingID,
				"elapsed_seconds": status.ElapsedSeconds,
			},
		})
		return nil

	case websocket.MessageTypeTranscriptionUpdate:
		client.SendMessage(&websocket.Message{
			Type: websocket.MessageTypeTranscriptionUpdate,
			Data: map[string]any{
				"transcript": h.controller.LiveTranscript(),
			},
		})
		return nil

	default:
		return fmt.Errorf("unhandled message type: %q", messageType)
	}
}
