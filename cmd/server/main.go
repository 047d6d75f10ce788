package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ddallabenetta/meet-transcriber-v3/internal/api"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/capture"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/config"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/llm"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/session"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/storage/sqlite"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/transcription"
	"github.com/ddallabenetta/meet-transcriber-v3/internal/websocket"
	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting meet-transcriber server",
		logger.String("version", Version),
		logger.String("data_dir", cfg.Storage.DataDir),
	)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		log.Error("Failed to create data directory", logger.Error(err), logger.String("path", cfg.Storage.DataDir))
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Capture.RecordingsDir, 0o755); err != nil {
		log.Error("Failed to create recordings directory", logger.Error(err), logger.String("path", cfg.Capture.RecordingsDir))
		os.Exit(1)
	}

	// Storage
	meetingStorage, err := sqlite.NewMeetingStorage(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer meetingStorage.Close()
	log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))

	settingsStorage := sqlite.NewSettingsStorage(meetingStorage.GetDB(), log)

	// WebSocket hub
	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	// Capture
	deviceLister := capture.NewFFmpegLister(cfg.Capture.FFmpegPath, cfg.Capture.InputFormat, log)
	deviceRegistry := capture.NewRegistry(deviceLister, log)

	refreshCtx, refreshCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := deviceRegistry.Refresh(refreshCtx); err != nil {
		log.Warn("Initial device enumeration failed", logger.Error(err))
	}
	refreshCancel()

	recorder := capture.NewRecorder(&cfg.Capture, log)

	// Transcription
	transcriptionClient := transcription.NewClient(&cfg.Transcription, log)
	transcriptionService := transcription.NewService(transcriptionClient, meetingStorage, log)
	streamer := transcription.NewStreamer(transcriptionClient, &cfg.Transcription, &cfg.Capture, log)

	// Session controller; live batches fan out to connected clients
	controller := session.NewController(
		recorder,
		meetingStorage,
		streamerSource{streamer},
		deviceRegistry,
		cfg.Capture.RecordingsDir,
		func(batch transcription.Batch) {
			wsServer.BroadcastEvent(websocket.MessageTypeTranscriptionUpdate, map[string]any{
				"language": batch.Language,
				"segments": batch.Segments,
			})
		},
		log,
	)

	// LLM
	llmService := llm.NewService(&cfg.LLM, meetingStorage, settingsStorage, log)

	// Inbound ws requests (session resync) answer on the requesting client
	wsServer.SetMessageHandler(api.NewWSCommandHandler(controller, log))

	// Session clock: the controller counts externally supplied ticks
	tickerCtx, tickerCancel := context.WithCancel(context.Background())
	defer tickerCancel()
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-tickerCtx.Done():
				return
			case <-ticker.C:
				controller.Tick()
			}
		}
	}()

	// API
	handler := api.NewHandler(
		controller,
		deviceRegistry,
		meetingStorage,
		settingsStorage,
		transcriptionService,
		llmService,
		cfg,
		log,
		wsServer,
	)
	router := api.NewRouter(handler, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", addr), logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Finalize any active recording so the meeting row is consistent
	if controller.Recording() {
		log.Info("Stopping active recording session...")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
		if _, err := controller.Stop(stopCtx); err != nil {
			log.Error("Error stopping recording session", logger.Error(err))
		}
		stopCancel()
	}

	tickerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", logger.Error(err))
	}

	log.Info("Server stopped")
}

// streamerSource adapts the concrete streamer to the controller's
// subscription interface
type streamerSource struct {
	streamer *transcription.Streamer
}

func (s streamerSource) Follow(ctx context.Context, audioPath, language string, handler func(transcription.Batch)) session.Canceler {
	return s.streamer.Follow(ctx, audioPath, language, handler)
}
