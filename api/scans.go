// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/gridrun/tracenet/api/utils"
	"github.com/gridrun/tracenet/engine"
	"github.com/gridrun/tracenet/reverts"
	"github.com/gridrun/tracenet/scan"
	"github.com/gridrun/tracenet/tracenet"
)

// Scans exposes the permissionless keeper surface: anyone may execute a due
// scan, submit death batches or finalize, exactly as anyone may call the
// corresponding methods on the core.
type Scans struct {
	eng *engine.Engine
}

func NewScans(eng *engine.Engine) *Scans {
	return &Scans{eng}
}

func convertScan(sc *scan.Scan) *Scan {
	return &Scan{
		ID:          sc.ID,
		Seed:        sc.Seed,
		BlockNumber: sc.BlockNumber,
		ExecutedAt:  sc.ExecutedAt,
		FinalizedAt: sc.FinalizedAt,
		TotalDead:   amountString(sc.TotalDead),
		DeathCount:  sc.DeathCount,
		Status:      sc.Status.String(),
	}
}

func (s *Scans) handleGetScan(w http.ResponseWriter, req *http.Request) error {
	tier, err := parseTier(mux.Vars(req)["tier"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "tier"))
	}
	sc, err := s.eng.CurrentScan(tier)
	if err != nil {
		if err == scan.ErrNoActiveScan {
			return utils.HTTPError(err, http.StatusNotFound)
		}
		return err
	}
	return utils.WriteJSON(w, convertScan(sc))
}

func (s *Scans) handleExecute(w http.ResponseWriter, req *http.Request) error {
	tier, err := parseTier(mux.Vars(req)["tier"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "tier"))
	}
	sc, expired, err := s.eng.ExecuteScan(tier)
	if err != nil {
		return revertOrInternal(err)
	}
	resp := map[string]interface{}{"scan": convertScan(sc)}
	if expired != nil {
		resp["expired"] = convertScan(expired)
	}
	return utils.WriteJSON(w, resp)
}

type submitDeathsBody struct {
	Candidates []tracenet.Address `json:"candidates"`
}

func (s *Scans) handleSubmitDeaths(w http.ResponseWriter, req *http.Request) error {
	tier, err := parseTier(mux.Vars(req)["tier"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "tier"))
	}
	var body submitDeathsBody
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	sc, accepted, err := s.eng.SubmitDeaths(tier, body.Candidates)
	if err != nil {
		return revertOrInternal(err)
	}
	return utils.WriteJSON(w, map[string]interface{}{
		"scan":     convertScan(sc),
		"accepted": accepted,
	})
}

func (s *Scans) handleFinalize(w http.ResponseWriter, req *http.Request) error {
	tier, err := parseTier(mux.Vars(req)["tier"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "tier"))
	}
	sc, dist, err := s.eng.FinalizeScan(tier)
	if err != nil {
		return revertOrInternal(err)
	}
	resp := map[string]interface{}{"scan": convertScan(sc)}
	if dist != nil {
		resp["distribution"] = map[string]string{
			"sameLevel": amountString(dist.SameLevel),
			"upstream":  amountString(dist.Upstream),
			"burned":    amountString(dist.Burned),
			"treasury":  amountString(dist.Treasury),
		}
	}
	return utils.WriteJSON(w, resp)
}

func (s *Scans) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{tier}").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(s.handleGetScan))
	sub.Path("/{tier}/execute").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(s.handleExecute))
	sub.Path("/{tier}/deaths").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(s.handleSubmitDeaths))
	sub.Path("/{tier}/finalize").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(s.handleFinalize))
}

// revertOrInternal maps domain precondition failures to 400 and leaves
// infrastructure failures as 500.
func revertOrInternal(err error) error {
	if reverts.IsRevert(err) {
		return utils.BadRequest(err)
	}
	return err
}
