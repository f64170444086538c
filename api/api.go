// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api exposes the core over a JSON HTTP surface: read-side getters
// for positions, tiers, scans and events, plus the permissionless keeper
// POSTs that drive scans and the reset timer.
package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/gridrun/tracenet/engine"
	"github.com/gridrun/tracenet/log"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins  string
	EnableReqLogger bool
	EnableMetrics   bool
}

// New returns the api handler.
func New(eng *engine.Engine, opts Options) http.Handler {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	NewPositions(eng).Mount(router, "/positions")
	NewTiers(eng).Mount(router, "/tiers")
	NewScans(eng).Mount(router, "/scans")
	NewReset(eng).Mount(router, "/reset")
	NewBoosts(eng).Mount(router, "/boosts")
	NewEvents(eng).Mount(router, "/events")

	if opts.EnableMetrics {
		router.Use(metricsHandler)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
	)(handler)

	if opts.EnableReqLogger {
		handler = RequestLoggerHandler(handler, logger)
	}
	return handler
}
