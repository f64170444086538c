// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/gridrun/tracenet/api/utils"
	"github.com/gridrun/tracenet/boost"
	"github.com/gridrun/tracenet/engine"
	"github.com/gridrun/tracenet/tracenet"
)

type Boosts struct {
	eng *engine.Engine
}

func NewBoosts(eng *engine.Engine) *Boosts {
	return &Boosts{eng}
}

type applyBoostBody struct {
	User      tracenet.Address `json:"user"`
	Kind      string           `json:"kind"`
	ValueBps  uint64           `json:"valueBps"`
	Expiry    uint64           `json:"expiry"`
	Nonce     uint64           `json:"nonce"`
	Signature string           `json:"signature"`
}

func parseBoostKind(s string) (boost.Kind, error) {
	switch s {
	case boost.DeathReduction.String():
		return boost.DeathReduction, nil
	case boost.YieldMultiplier.String():
		return boost.YieldMultiplier, nil
	default:
		return 0, errors.Errorf("unknown boost kind %q", s)
	}
}

func (b *Boosts) handleApply(w http.ResponseWriter, req *http.Request) error {
	var body applyBoostBody
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	kind, err := parseBoostKind(body.Kind)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "kind"))
	}
	sig, err := hexutil.Decode(body.Signature)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "signature"))
	}
	if err := b.eng.ApplyBoost(body.User, kind, body.ValueBps, body.Expiry, body.Nonce, sig); err != nil {
		return revertOrInternal(err)
	}
	return utils.WriteJSON(w, map[string]bool{"applied": true})
}

func (b *Boosts) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(b.handleApply))
}
