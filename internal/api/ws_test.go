package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddallabenetta/meet-transcriber-v3/internal/session"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/websocket"
	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

func newIdleController() *session.Controller {
	return session.NewController(nil, nil, nil, nil, "", nil, logger.NewNop())
}

func TestWSCommandHandlerAnswersSessionStatus(t *testing.T) {
	handler := NewWSCommandHandler(newIdleController(), logger.NewNop())

	err := handler.HandleMessage(&websocket.Client{}, websocket.MessageTypeSessionStatus, nil)
	require.NoError(t, err)
}

func TestWSCommandHandlerAnswersTranscriptRequest(t *testing.T) {
	handler := NewWSCommandHandler(newIdleController(), logger.NewNop())

	err := handler.HandleMessage(&websocket.Client{}, websocket.MessageTypeTranscriptionUpdate, nil)
	require.NoError(t, err)
}

func TestWSCommandHandlerRejectsUnknownType(t *testing.T) {
	handler := NewWSCommandHandler(newIdleController(), logger.NewNop())

	err := handler.HandleMessage(&websocket.Client{}, "reboot", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reboot")
}
