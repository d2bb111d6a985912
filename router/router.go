// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/quickly-rank/auth"
	"github.com/danielhkuo/quickly-rank/cliparse"
	"github.com/danielhkuo/quickly-rank/gateway"
	"github.com/danielhkuo/quickly-rank/handlers"
	"github.com/danielhkuo/quickly-rank/middleware"
	"github.com/danielhkuo/quickly-rank/polls"
)

// NewRouter wires the session service, auth and gateway over store. The
// returned gateway must be closed on shutdown to drop live connections.
func NewRouter(store polls.Store, cfg cliparse.Config) (*http.ServeMux, *gateway.Gateway, error) {
	mux := http.NewServeMux()

	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.PollDuration)
	if err != nil {
		return nil, nil, err
	}

	service := polls.NewService(store, cfg.PollDuration)
	gate := auth.NewGate(issuer, service)

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(service, issuer, gate)
	live := gateway.New(service, gate, gateway.NewHub(), cfg.ClientOrigins)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Poll sessions
	mux.HandleFunc("POST /polls", middleware.WithLogging(pollHandler.CreatePoll))
	mux.HandleFunc("POST /polls/join", middleware.WithLogging(pollHandler.JoinPoll))
	mux.HandleFunc("POST /polls/rejoin", middleware.WithLogging(pollHandler.RejoinPoll))
	mux.HandleFunc("GET /polls/{id}", middleware.WithLogging(pollHandler.GetPoll))

	// Live updates (websocket)
	mux.HandleFunc("GET /polls/live", live.ServeWS)

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("quickly-rank API v1"))
	})

	return mux, live, nil
}
