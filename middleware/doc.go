// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (duration_ms).

# CORS Middleware

Enable cross-origin requests for the configured client origins:

	server := http.Server{
		Handler: middleware.CORS(cfg.ClientOrigins)(mux),
	}

Origins not on the list get no CORS headers. "*" allows any origin.
OriginAllowed applies the same list to websocket upgrades.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	middleware.WriteError(w, err)

WriteError maps a models.PollError to its status:

	NotFound         404
	Conflict         409
	BadRequest       400
	Unauthorized     401
	StoreUnavailable 503
	anything else    500

# Tokens

	token := middleware.BearerToken(r)  // Authorization: Bearer <token>
	token := middleware.RequestToken(r) // ?token=, then Bearer, then Token header

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)
*/
package middleware
