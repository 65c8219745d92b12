// Package server provides HTTP server initialization and lifecycle
// management for the memgate API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/kinic-labs/memgate/internal/config"
	"github.com/kinic-labs/memgate/internal/router"
	"github.com/kinic-labs/memgate/web/handlers"
)

// Start initializes and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with
// port 0) and the WebSocketHub for wiring insert event broadcasts.
// The server shuts down gracefully when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, gateway *router.Router) (string, *handlers.WebSocketHub, error) {
	mux := http.NewServeMux()

	wsHub := handlers.NewWebSocketHub(cfg.CORS.AllowedOrigins)
	go wsHub.Run()

	// 10 req/sec sustained, burst of 20.
	rateLimiter := handlers.NewRateLimiter(10.0, 20)

	api := handlers.NewHandlers(gateway, cfg, wsHub)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/memories", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			api.ListMemories(w, r)
		case http.MethodPost:
			api.CreateMemory(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/memories/{id}/insert", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		api.InsertMemory(w, r)
	})
	apiMux.HandleFunc("/memories/{id}/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		api.SearchMemories(w, r)
	})
	apiMux.HandleFunc("/memories/{id}/commitment", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		api.GetCommitment(w, r)
	})

	// Memory routes require auth in production mode.
	mux.Handle("/memories", handlers.RequireAuth(apiMux, cfg))
	mux.Handle("/memories/", handlers.RequireAuth(apiMux, cfg))

	// Health stays open so orchestration probes work without a token.
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		api.Health(w, r)
	})

	// WebSocket endpoint (origin validation handles security).
	mux.Handle("/ws", wsHub)

	// Wrap with rate limiting, CORS, request ids, then security headers.
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = handlers.CORS(handler, cfg)
	handler = handlers.RequestID(handler)
	handler = handlers.SecurityHeaders(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		wsHub.Stop()
		return "", nil, fmt.Errorf("server: failed to listen on %s: %w", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub, nil
}
