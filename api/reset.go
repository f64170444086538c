// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gridrun/tracenet/api/utils"
	"github.com/gridrun/tracenet/engine"
)

type Reset struct {
	eng *engine.Engine
}

func NewReset(eng *engine.Engine) *Reset {
	return &Reset{eng}
}

func (r *Reset) handleGetState(w http.ResponseWriter, _ *http.Request) error {
	st, err := r.eng.ResetState()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &ResetState{
		Deadline:        st.Deadline,
		LastDepositor:   st.LastDepositor,
		LastDepositTime: st.LastDepositTime,
		Epoch:           st.Epoch,
		PenaltyBps:      st.PenaltyBps,
	})
}

func (r *Reset) handleTrigger(w http.ResponseWriter, _ *http.Request) error {
	out, err := r.eng.TriggerReset()
	if err != nil {
		return revertOrInternal(err)
	}
	return utils.WriteJSON(w, map[string]interface{}{
		"epoch":   out.Epoch,
		"winner":  out.Winner,
		"jackpot": amountString(out.Jackpot),
	})
}

func (r *Reset) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(r.handleGetState))
	sub.Path("/trigger").Methods(http.MethodPost).HandlerFunc(utils.WrapHandlerFunc(r.handleTrigger))
}
