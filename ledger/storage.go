// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/gridrun/tracenet/store"
	"github.com/gridrun/tracenet/tracenet"
)

var (
	slotPositions = tracenet.BytesToBytes32([]byte("positions"))
	slotTierState = tracenet.BytesToBytes32([]byte("tier-state"))
	slotEpochCuts = tracenet.BytesToBytes32([]byte("epoch-cuts"))
)

type repository struct {
	ctx       *store.Context
	positions *store.Mapping[tracenet.Address, Position]
}

func newRepository(ctx *store.Context) *repository {
	return &repository{
		ctx:       ctx,
		positions: store.NewMapping[tracenet.Address, Position](ctx, slotPositions),
	}
}

func (r *repository) getPosition(user tracenet.Address) (*Position, bool, error) {
	pos, ok, err := r.positions.Get(user)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to get position")
	}
	return pos, ok, nil
}

func (r *repository) setPosition(user tracenet.Address, pos *Position) error {
	return errors.Wrap(r.positions.Set(user, pos), "failed to set position")
}

func (r *repository) tierSlot(tier tracenet.Tier) tracenet.Bytes32 {
	return tracenet.Blake2b(slotTierState.Bytes(), []byte{byte(tier)})
}

func (r *repository) getTierState(tier tracenet.Tier) (*TierState, error) {
	ts, ok, err := store.NewStruct[TierState](r.ctx, r.tierSlot(tier)).Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tier state")
	}
	if !ok {
		return newTierState(), nil
	}
	return ts, nil
}

func (r *repository) setTierState(tier tracenet.Tier, ts *TierState) error {
	return errors.Wrap(store.NewStruct[TierState](r.ctx, r.tierSlot(tier)).Set(ts), "failed to set tier state")
}

func (r *repository) cutSlot(tier tracenet.Tier, epoch uint64) tracenet.Bytes32 {
	var eb [8]byte
	binary.BigEndian.PutUint64(eb[:], epoch)
	return tracenet.Blake2b(slotEpochCuts.Bytes(), []byte{byte(tier)}, eb[:])
}

func (r *repository) getEpochCut(tier tracenet.Tier, epoch uint64) (*EpochCut, bool, error) {
	cut, ok, err := store.NewStruct[EpochCut](r.ctx, r.cutSlot(tier, epoch)).Get()
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to get epoch cut")
	}
	return cut, ok, nil
}

func (r *repository) setEpochCut(tier tracenet.Tier, epoch uint64, cut *EpochCut) error {
	return errors.Wrap(store.NewStruct[EpochCut](r.ctx, r.cutSlot(tier, epoch)).Set(cut), "failed to set epoch cut")
}
