// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package eventdb persists the append-only event records through which
// external consumers (the indexer, keeper bots, the UI) observe the ledger.
package eventdb

import (
	"database/sql"
	"fmt"
	"math/big"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gridrun/tracenet/tracenet"
)

// Kind of a recorded state transition.
type Kind string

const (
	KindJackIn             Kind = "jack-in"
	KindAddStake           Kind = "add-stake"
	KindClaim              Kind = "claim"
	KindExtract            Kind = "extract"
	KindScanExecuted       Kind = "scan-executed"
	KindDeathsSubmitted    Kind = "deaths-submitted"
	KindScanFinalized      Kind = "scan-finalized"
	KindScanExpired        Kind = "scan-expired"
	KindCascadeDistributed Kind = "cascade-distributed"
	KindBoostApplied       Kind = "boost-applied"
	KindSystemReset        Kind = "system-reset"
)

// Event is one append-only record. Seq is assigned on insert and gives causal
// order; ScanID and Epoch tie the record to its scan/reset context.
type Event struct {
	Seq       int64
	Kind      Kind
	Tier      tracenet.Tier
	ScanID    uint64
	Epoch     uint64
	User      tracenet.Address
	Amount    *big.Int
	AuxAmount *big.Int
	Timestamp uint64
}

const schema = `CREATE TABLE IF NOT EXISTS event (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	tier INTEGER NOT NULL,
	scanID INTEGER NOT NULL,
	epoch INTEGER NOT NULL,
	user BLOB NOT NULL,
	amount TEXT NOT NULL,
	auxAmount TEXT NOT NULL,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS event_kind ON event(kind);
CREATE INDEX IF NOT EXISTS event_tier ON event(tier);
CREATE INDEX IF NOT EXISTS event_user ON event(user);`

// OrderType result ordering by sequence.
type OrderType string

const (
	ASC  OrderType = "ASC"
	DESC OrderType = "DESC"
)

// Options paging options.
type Options struct {
	Offset uint64
	Limit  uint64
}

// Filter narrows an event query. Nil members match everything.
type Filter struct {
	Kind    *Kind
	Tier    *tracenet.Tier
	User    *tracenet.Address
	FromSeq *int64
	ToSeq   *int64
	Order   OrderType
	Options *Options
}

// EventDB manages the event records.
type EventDB struct {
	path string
	db   *sql.DB
}

// New opens an event db at path, creating the schema when absent.
func New(path string) (*EventDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &EventDB{path: path, db: db}, nil
}

// NewMem creates a memory-backed event db.
func NewMem() (*EventDB, error) {
	return New(":memory:")
}

// Append inserts one event and returns its assigned sequence number.
func (db *EventDB) Append(ev *Event) (int64, error) {
	res, err := db.db.Exec(
		"INSERT INTO event(kind, tier, scanID, epoch, user, amount, auxAmount, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?);",
		string(ev.Kind),
		ev.Tier,
		ev.ScanID,
		ev.Epoch,
		ev.User.Bytes(),
		amountText(ev.Amount),
		amountText(ev.AuxAmount),
		ev.Timestamp,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Filter returns events matching the filter, ordered by sequence.
func (db *EventDB) Filter(filter *Filter) ([]*Event, error) {
	if filter == nil {
		return db.query("SELECT * FROM event ORDER BY seq ASC")
	}
	stmt := "SELECT * FROM event WHERE 1"
	var args []any
	if filter.Kind != nil {
		stmt += " AND kind = ?"
		args = append(args, string(*filter.Kind))
	}
	if filter.Tier != nil {
		stmt += " AND tier = ?"
		args = append(args, *filter.Tier)
	}
	if filter.User != nil {
		stmt += " AND user = ?"
		args = append(args, filter.User.Bytes())
	}
	if filter.FromSeq != nil {
		stmt += " AND seq >= ?"
		args = append(args, *filter.FromSeq)
	}
	if filter.ToSeq != nil {
		stmt += " AND seq <= ?"
		args = append(args, *filter.ToSeq)
	}
	order := filter.Order
	if order != DESC {
		order = ASC
	}
	stmt += fmt.Sprintf(" ORDER BY seq %s", order)
	if filter.Options != nil {
		stmt += " LIMIT ? OFFSET ?"
		args = append(args, filter.Options.Limit, filter.Options.Offset)
	}
	return db.query(stmt, args...)
}

// Close closes the event db.
func (db *EventDB) Close() error {
	return db.db.Close()
}

// Path returns the event db path.
func (db *EventDB) Path() string {
	return db.path
}

func (db *EventDB) query(stmt string, args ...any) ([]*Event, error) {
	rows, err := db.db.Query(stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			ev        Event
			kind      string
			user      []byte
			amount    string
			auxAmount string
		)
		if err := rows.Scan(
			&ev.Seq,
			&kind,
			&ev.Tier,
			&ev.ScanID,
			&ev.Epoch,
			&user,
			&amount,
			&auxAmount,
			&ev.Timestamp,
		); err != nil {
			return nil, err
		}
		ev.Kind = Kind(kind)
		ev.User = tracenet.BytesToAddress(user)
		ev.Amount, _ = new(big.Int).SetString(amount, 10)
		ev.AuxAmount, _ = new(big.Int).SetString(auxAmount, 10)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func amountText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
