// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/gridrun/tracenet/api/utils"
	"github.com/gridrun/tracenet/engine"
	"github.com/gridrun/tracenet/eventdb"
	"github.com/gridrun/tracenet/tracenet"
)

const defaultEventLimit = 100

type Events struct {
	eng *engine.Engine
}

func NewEvents(eng *engine.Engine) *Events {
	return &Events{eng}
}

func (e *Events) handleQuery(w http.ResponseWriter, req *http.Request) error {
	filter, err := parseEventFilter(req)
	if err != nil {
		return err
	}
	events, err := e.eng.Events(filter)
	if err != nil {
		return err
	}
	out := make([]*Event, 0, len(events))
	for _, ev := range events {
		out = append(out, &Event{
			Seq:       ev.Seq,
			Kind:      string(ev.Kind),
			Tier:      ev.Tier.String(),
			ScanID:    ev.ScanID,
			Epoch:     ev.Epoch,
			User:      ev.User,
			Amount:    amountString(ev.Amount),
			AuxAmount: amountString(ev.AuxAmount),
			Timestamp: ev.Timestamp,
		})
	}
	return utils.WriteJSON(w, out)
}

func parseEventFilter(req *http.Request) (*eventdb.Filter, error) {
	q := req.URL.Query()
	filter := &eventdb.Filter{
		Order:   eventdb.ASC,
		Options: &eventdb.Options{Limit: defaultEventLimit},
	}
	if s := q.Get("kind"); s != "" {
		kind := eventdb.Kind(s)
		filter.Kind = &kind
	}
	if s := q.Get("tier"); s != "" {
		tier, err := parseTier(s)
		if err != nil {
			return nil, utils.BadRequest(errors.WithMessage(err, "tier"))
		}
		filter.Tier = &tier
	}
	if s := q.Get("user"); s != "" {
		addr, err := tracenet.ParseAddress(s)
		if err != nil {
			return nil, utils.BadRequest(errors.WithMessage(err, "user"))
		}
		filter.User = addr
	}
	if s := q.Get("from"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, utils.BadRequest(errors.WithMessage(err, "from"))
		}
		filter.FromSeq = &n
	}
	if s := q.Get("to"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, utils.BadRequest(errors.WithMessage(err, "to"))
		}
		filter.ToSeq = &n
	}
	if q.Get("order") == "desc" {
		filter.Order = eventdb.DESC
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, utils.BadRequest(errors.WithMessage(err, "limit"))
		}
		filter.Options.Limit = n
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, utils.BadRequest(errors.WithMessage(err, "offset"))
		}
		filter.Options.Offset = n
	}
	return filter, nil
}

func (e *Events) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(e.handleQuery))
}
