// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gridrun/tracenet/engine"
	"github.com/gridrun/tracenet/log"
	"github.com/gridrun/tracenet/tracenet"
)

type logLevelRequest struct {
	Level string `json:"level"`
}

type logLevelResponse struct {
	CurrentLevel string `json:"currentLevel"`
}

type errorResponse struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// TierHealth reports one scanned tier's schedule state. A tier is overdue
// when no keeper executed its scan for a full extra interval.
type TierHealth struct {
	Tier         string `json:"tier"`
	NextScanTime uint64 `json:"nextScanTime"`
	Overdue      bool   `json:"overdue"`
}

type HealthStatus struct {
	Healthy bool         `json:"healthy"`
	Now     uint64       `json:"now"`
	Tiers   []TierHealth `json:"tiers"`
}

func writeError(w http.ResponseWriter, errCode int, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errCode)
	json.NewEncoder(w).Encode(errorResponse{
		ErrorCode:    errCode,
		ErrorMessage: errMsg,
	})
}

func getLogLevelHandler(logLevel *slog.LevelVar) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(logLevelResponse{
			CurrentLevel: logLevel.Level().String(),
		})
	}
}

func postLogLevelHandler(logLevel *slog.LevelVar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req logLevelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		switch req.Level {
		case "trace":
			logLevel.Set(log.LevelTrace)
		case "debug":
			logLevel.Set(log.LevelDebug)
		case "info":
			logLevel.Set(log.LevelInfo)
		case "warn":
			logLevel.Set(log.LevelWarn)
		case "error":
			logLevel.Set(log.LevelError)
		default:
			writeError(w, http.StatusBadRequest, "Invalid verbosity level")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(logLevelResponse{
			CurrentLevel: logLevel.Level().String(),
		})
	}
}

func healthHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		now := uint64(time.Now().Unix())
		params := eng.Tiers()

		healthy := true
		tiers := make([]TierHealth, 0, len(params))
		for tier := tracenet.Tier(0); tier.Valid(); tier++ {
			interval := params[tier].ScanInterval
			if interval == 0 {
				continue
			}
			ts, err := eng.TierState(tier)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			overdue := now > ts.NextScanTime+interval
			if overdue {
				healthy = false
			}
			tiers = append(tiers, TierHealth{
				Tier:         tier.String(),
				NextScanTime: ts.NextScanTime,
				Overdue:      overdue,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(&HealthStatus{
			Healthy: healthy,
			Now:     now,
			Tiers:   tiers,
		})
	}
}
