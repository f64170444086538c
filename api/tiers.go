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
	"github.com/gridrun/tracenet/tracenet"
)

type Tiers struct {
	eng *engine.Engine
}

func NewTiers(eng *engine.Engine) *Tiers {
	return &Tiers{eng}
}

func (t *Tiers) tierState(tier tracenet.Tier) (*TierState, error) {
	view, err := t.eng.TierState(tier)
	if err != nil {
		return nil, err
	}
	return &TierState{
		Name:           view.Params.Name,
		DeathRateBps:   view.Params.DeathRateBps,
		YieldRateBps:   view.Params.YieldRateBps,
		MinStake:       amountString(view.Params.MinStake),
		MaxPositions:   view.Params.MaxPositions,
		ScanInterval:   view.Params.ScanInterval,
		TotalStaked:    amountString(view.TotalStaked),
		AliveCount:     view.AliveCount,
		RewardPool:     amountString(view.RewardPool),
		TotalEmitted:   amountString(view.TotalEmitted),
		NextScanTime:   view.NextScanTime,
		FinalizedScans: view.FinalizedScans,
	}, nil
}

func (t *Tiers) handleGetTiers(w http.ResponseWriter, _ *http.Request) error {
	out := make([]*TierState, 0, tracenet.TierCount)
	for tier := tracenet.Tier(0); tier.Valid(); tier++ {
		ts, err := t.tierState(tier)
		if err != nil {
			return err
		}
		out = append(out, ts)
	}
	return utils.WriteJSON(w, out)
}

func (t *Tiers) handleGetTier(w http.ResponseWriter, req *http.Request) error {
	tier, err := parseTier(mux.Vars(req)["tier"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "tier"))
	}
	ts, err := t.tierState(tier)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, ts)
}

func (t *Tiers) handleGetStats(w http.ResponseWriter, _ *http.Request) error {
	burned, err := t.eng.TotalBurned()
	if err != nil {
		return err
	}
	treasury, err := t.eng.TotalTreasury()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, map[string]string{
		"totalBurned":   amountString(burned),
		"totalTreasury": amountString(treasury),
	})
}

func (t *Tiers) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(t.handleGetTiers))
	sub.Path("/stats").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(t.handleGetStats))
	sub.Path("/{tier}").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(t.handleGetTier))
}
