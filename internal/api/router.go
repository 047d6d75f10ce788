package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ddallabenetta/meet-transcriber-v3/internal/config"
)

// Router wraps the API handler with route registration
type Router struct {
	handler *Handler
	config  *config.Config
}

// NewRouter creates a new API router around the handler
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	return &Router{handler: handler, config: cfg}
}

// Routes builds the chi route tree
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(120 * time.Second))
	router.Use(corsMiddleware(r.config.Server.CORSAllowedOrigins))

	router.Route("/api/v1", func(api chi.Router) {
		api.Route("/session", func(s chi.Router) {
			s.Get("/", r.handler.GetSessionStatus)
			s.Get("/transcript", r.handler.GetLiveTranscript)
			s.Post("/start", r.handler.StartSession)
			s.Post("/stop", r.handler.StopSession)
		})

		api.Route("/meetings", func(m chi.Router) {
			m.Get("/", r.handler.GetMeetings)
			m.Get("/{id}", r.handler.GetMeeting)
			m.Put("/{id}", r.handler.UpdateMeeting)
			m.Delete("/{id}", r.handler.DeleteMeeting)
			m.Post("/{id}/transcribe", r.handler.TranscribeMeeting)
			m.Post("/{id}/report", r.handler.GenerateReport)
		})

		api.Route("/devices", func(d chi.Router) {
			d.Get("/", r.handler.GetDevices)
			d.Post("/refresh", r.handler.RefreshDevices)
			d.Put("/selected", r.handler.SelectDevice)
		})

		api.Route("/settings", func(s chi.Router) {
			s.Get("/app", r.handler.GetAppSettings)
			s.Put("/app", r.handler.SaveAppSettings)
			s.Get("/llm", r.handler.GetLLMSettings)
			s.Put("/llm", r.handler.SaveLLMSettings)
			s.Get("/llm/default-prompt", r.handler.GetDefaultSystemPrompt)
		})

		api.Get("/models", r.handler.GetWhisperModels)
		api.Get("/data-dir", r.handler.GetDataDir)
		api.Get("/ws", r.handler.HandleWebSocket)
	})

	return router
}

// corsMiddleware applies the configured allowed origins. An empty list or
// a "*" entry allows any origin.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			origin := req.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}
			if req.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
