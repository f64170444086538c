// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package admin exposes the operator surface, served on its own listen
// address: runtime log level control and a liveness probe over the scan
// schedule.
package admin

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/gridrun/tracenet/engine"
)

func HTTPHandler(logLevel *slog.LevelVar, eng *engine.Engine) http.Handler {
	router := mux.NewRouter()
	sub := router.PathPrefix("/admin").Subrouter()
	sub.Path("/loglevel").Methods(http.MethodGet).HandlerFunc(getLogLevelHandler(logLevel))
	sub.Path("/loglevel").Methods(http.MethodPost).HandlerFunc(postLogLevelHandler(logLevel))
	sub.Path("/health").Methods(http.MethodGet).HandlerFunc(healthHandler(eng))
	return handlers.CompressHandler(router)
}
