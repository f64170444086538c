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
	"github.com/gridrun/tracenet/ledger"
	"github.com/gridrun/tracenet/tracenet"
)

type Positions struct {
	eng *engine.Engine
}

func NewPositions(eng *engine.Engine) *Positions {
	return &Positions{eng}
}

func (p *Positions) handleGetPosition(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddressVar(req)
	if err != nil {
		return err
	}
	view, err := p.eng.Position(*addr)
	if err != nil {
		if err == ledger.ErrNoPosition {
			return utils.HTTPError(err, http.StatusNotFound)
		}
		return err
	}
	return utils.WriteJSON(w, &Position{
		Tier:        view.Tier.String(),
		Amount:      amountString(view.Amount),
		Claimable:   amountString(view.Claimable),
		EntryTime:   view.EntryTime,
		LastAddTime: view.LastAddTime,
		UnlockTime:  view.UnlockTime,
		Alive:       view.Alive,
		GhostStreak: view.GhostStreak,
	})
}

func (p *Positions) handleGetRewards(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddressVar(req)
	if err != nil {
		return err
	}
	pending, err := p.eng.PendingRewards(*addr)
	if err != nil {
		if err == ledger.ErrNoPosition {
			return utils.HTTPError(err, http.StatusNotFound)
		}
		return err
	}
	return utils.WriteJSON(w, map[string]string{"pending": amountString(pending)})
}

func (p *Positions) handleGetBoosts(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddressVar(req)
	if err != nil {
		return err
	}
	active, err := p.eng.Boosts(*addr)
	if err != nil {
		return err
	}
	out := make([]*Boost, 0, len(active))
	for _, b := range active {
		out = append(out, &Boost{
			Kind:     b.Kind.String(),
			ValueBps: b.ValueBps,
			Expiry:   b.Expiry,
		})
	}
	return utils.WriteJSON(w, out)
}

func (p *Positions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{address}").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(p.handleGetPosition))
	sub.Path("/{address}/rewards").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(p.handleGetRewards))
	sub.Path("/{address}/boosts").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(p.handleGetBoosts))
}

func parseAddressVar(req *http.Request) (*tracenet.Address, error) {
	addr, err := tracenet.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return nil, utils.BadRequest(errors.WithMessage(err, "address"))
	}
	return addr, nil
}
