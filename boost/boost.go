// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package boost holds time-limited per-user modifiers authorized by the game
// server's signing key. The core verifies signatures; it never produces them.
package boost

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/gridrun/tracenet/log"
	"github.com/gridrun/tracenet/reverts"
	"github.com/gridrun/tracenet/store"
	"github.com/gridrun/tracenet/tracenet"
)

var logger = log.WithContext("pkg", "boost")

var (
	ErrInvalidSignature = reverts.New("invalid boost signature")
	ErrSignatureExpired = reverts.New("boost signature expired")
	ErrNonceAlreadyUsed = reverts.New("boost nonce already used")
	ErrInvalidBoost     = reverts.New("invalid boost")
)

var (
	slotBoosts = tracenet.BytesToBytes32([]byte("boosts"))
	slotNonces = tracenet.BytesToBytes32([]byte("boost-nonces"))

	domainTag = []byte("tracenet-boost-v1")
)

// Kind of modifier a boost applies.
type Kind uint8

const (
	DeathReduction Kind = iota + 1
	YieldMultiplier
)

func (k Kind) Valid() bool {
	return k == DeathReduction || k == YieldMultiplier
}

func (k Kind) String() string {
	switch k {
	case DeathReduction:
		return "death-reduction"
	case YieldMultiplier:
		return "yield-multiplier"
	default:
		return "unknown"
	}
}

// Boost is one active modifier. Expired entries are filtered at read time.
type Boost struct {
	Kind     Kind
	ValueBps uint64
	Expiry   uint64
}

type boostList struct {
	Items []Boost
}

type nonceKey [8]byte

func (n nonceKey) Bytes() []byte { return n[:] }

// Registry stores boosts and the used-nonce set, and verifies the authority's
// signatures.
type Registry struct {
	authority tracenet.Address
	boosts    *store.Mapping[tracenet.Address, boostList]
	nonces    *store.FlagSet[nonceKey]
}

// New creates a registry trusting the given authority address.
func New(ctx *store.Context, authority tracenet.Address) *Registry {
	return &Registry{
		authority: authority,
		boosts:    store.NewMapping[tracenet.Address, boostList](ctx, slotBoosts),
		nonces:    store.NewFlagSet[nonceKey](ctx, slotNonces),
	}
}

// SigningHash returns the digest the authority signs for one boost grant.
func SigningHash(user tracenet.Address, kind Kind, valueBps, expiry, nonce uint64) tracenet.Bytes32 {
	var buf [25]byte
	buf[0] = byte(kind)
	binary.BigEndian.PutUint64(buf[1:9], valueBps)
	binary.BigEndian.PutUint64(buf[9:17], expiry)
	binary.BigEndian.PutUint64(buf[17:25], nonce)
	return tracenet.Blake2b(domainTag, user.Bytes(), buf[:])
}

// Sign produces an authority signature over a boost grant. Test/tooling helper;
// in production the game server holds the key.
func Sign(user tracenet.Address, kind Kind, valueBps, expiry, nonce uint64, privateKey []byte) ([]byte, error) {
	priv, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, err
	}
	hash := SigningHash(user, kind, valueBps, expiry, nonce)
	return crypto.Sign(hash.Bytes(), priv)
}

// Apply verifies and stores a boost. Replays are rejected through the nonce
// used-set; naturally expired boosts are pruned while the list is rewritten.
func (r *Registry) Apply(user tracenet.Address, kind Kind, valueBps, expiry, nonce uint64, sig []byte, now uint64) error {
	if !kind.Valid() || valueBps == 0 {
		return ErrInvalidBoost
	}
	if expiry <= now {
		return ErrSignatureExpired
	}

	var nk nonceKey
	binary.BigEndian.PutUint64(nk[:], nonce)
	used, err := r.nonces.Has(nk)
	if err != nil {
		return errors.Wrap(err, "failed to check nonce")
	}
	if used {
		return ErrNonceAlreadyUsed
	}

	hash := SigningHash(user, kind, valueBps, expiry, nonce)
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return ErrInvalidSignature
	}
	if tracenet.Address(crypto.PubkeyToAddress(*pub)) != r.authority {
		return ErrInvalidSignature
	}

	list, _, err := r.boosts.Get(user)
	if err != nil {
		return errors.Wrap(err, "failed to get boosts")
	}
	if list == nil {
		list = &boostList{}
	}
	kept := list.Items[:0]
	for _, b := range list.Items {
		if b.Expiry > now {
			kept = append(kept, b)
		}
	}
	list.Items = append(kept, Boost{Kind: kind, ValueBps: valueBps, Expiry: expiry})

	if err := r.nonces.Set(nk); err != nil {
		return errors.Wrap(err, "failed to set nonce")
	}
	if err := r.boosts.Set(user, list); err != nil {
		return errors.Wrap(err, "failed to set boosts")
	}
	logger.Debug("boost applied", "user", user, "kind", kind, "valueBps", valueBps, "expiry", expiry)
	return nil
}

// Active returns the user's non-expired boosts.
func (r *Registry) Active(user tracenet.Address, now uint64) ([]Boost, error) {
	list, ok, err := r.boosts.Get(user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get boosts")
	}
	if !ok {
		return nil, nil
	}
	var active []Boost
	for _, b := range list.Items {
		if b.Expiry > now {
			active = append(active, b)
		}
	}
	return active, nil
}

// EffectiveDeathRate folds active death-reduction boosts into the base rate:
// additive, capped at MaxDeathReductionBps, floored at zero.
func (r *Registry) EffectiveDeathRate(user tracenet.Address, baseRateBps, now uint64) (uint64, error) {
	active, err := r.Active(user, now)
	if err != nil {
		return 0, err
	}
	var reduction uint64
	for _, b := range active {
		if b.Kind == DeathReduction {
			reduction += b.ValueBps
		}
	}
	if reduction > tracenet.MaxDeathReductionBps {
		reduction = tracenet.MaxDeathReductionBps
	}
	if reduction >= baseRateBps {
		return 0, nil
	}
	return baseRateBps - reduction, nil
}

// EffectiveYieldBonusBps folds active yield-multiplier boosts, capped at
// MaxYieldBoostBps.
func (r *Registry) EffectiveYieldBonusBps(user tracenet.Address, now uint64) (uint64, error) {
	active, err := r.Active(user, now)
	if err != nil {
		return 0, err
	}
	var bonus uint64
	for _, b := range active {
		if b.Kind == YieldMultiplier {
			bonus += b.ValueBps
		}
	}
	if bonus > tracenet.MaxYieldBoostBps {
		bonus = tracenet.MaxYieldBoostBps
	}
	return bonus, nil
}

// BonusOn returns the extra payout a yield boost adds to base rewards.
func BonusOn(base *big.Int, bonusBps uint64) *big.Int {
	if bonusBps == 0 || base.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(base, new(big.Int).SetUint64(bonusBps))
	return out.Div(out, new(big.Int).SetUint64(tracenet.BpsDenominator))
}
