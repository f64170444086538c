// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridrun/tracenet/engine"
	"github.com/gridrun/tracenet/eventdb"
	"github.com/gridrun/tracenet/lvldb"
	"github.com/gridrun/tracenet/tracenet"
)

// devToken mints on demand so handlers can be exercised without balances.
type devToken struct{}

func (devToken) TransferFrom(_ tracenet.Address, amount *big.Int) (*big.Int, error) {
	return new(big.Int).Set(amount), nil
}
func (devToken) Transfer(tracenet.Address, *big.Int) error { return nil }
func (devToken) Burn(*big.Int) error                       { return nil }

type devBeacon struct{}

func (devBeacon) Randomness() (tracenet.Bytes32, uint64, error) {
	return tracenet.Blake2b([]byte("api-test")), 1, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	edb, err := eventdb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { edb.Close() })

	cfg := engine.DefaultConfig()
	for i := range cfg.Tiers {
		cfg.Tiers[i].MinStake = big.NewInt(1)
	}
	eng, err := engine.New(db, edb, devToken{}, devBeacon{}, cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(New(eng, Options{AllowedOrigins: "*"}))
	t.Cleanup(srv.Close)
	return srv, eng
}

func httpGet(t *testing.T, url string) (int, []byte) {
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, body
}

func httpPost(t *testing.T, url, body string) (int, []byte) {
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, out
}

func TestGetTiers(t *testing.T) {
	srv, _ := newTestServer(t)

	code, body := httpGet(t, srv.URL+"/tiers")
	require.Equal(t, http.StatusOK, code)

	var tiers []*TierState
	require.NoError(t, json.Unmarshal(body, &tiers))
	require.Len(t, tiers, tracenet.TierCount)
	assert.Equal(t, "vault", tiers[0].Name)
	assert.Equal(t, "blackice", tiers[tracenet.TierCount-1].Name)

	code, body = httpGet(t, srv.URL+"/tiers/darknet")
	require.Equal(t, http.StatusOK, code)
	var tier TierState
	require.NoError(t, json.Unmarshal(body, &tier))
	assert.Equal(t, "darknet", tier.Name)
	assert.NotZero(t, tier.NextScanTime)

	code, _ = httpGet(t, srv.URL+"/tiers/mainframe")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetPosition(t *testing.T) {
	srv, eng := newTestServer(t)
	alice := tracenet.BytesToAddress([]byte("alice"))
	_, err := eng.JackIn(alice, big.NewInt(100), tracenet.TierProxy)
	require.NoError(t, err)

	code, body := httpGet(t, srv.URL+"/positions/"+alice.String())
	require.Equal(t, http.StatusOK, code)
	var pos Position
	require.NoError(t, json.Unmarshal(body, &pos))
	assert.Equal(t, "proxy", pos.Tier)
	assert.Equal(t, "100", pos.Amount)
	assert.True(t, pos.Alive)

	code, body = httpGet(t, srv.URL+"/positions/"+alice.String()+"/rewards")
	require.Equal(t, http.StatusOK, code)
	var rewards map[string]string
	require.NoError(t, json.Unmarshal(body, &rewards))
	assert.Equal(t, "0", rewards["pending"])

	// unknown runner
	ghost := tracenet.BytesToAddress([]byte("ghost"))
	code, _ = httpGet(t, srv.URL+"/positions/"+ghost.String())
	assert.Equal(t, http.StatusNotFound, code)

	// malformed address
	code, _ = httpGet(t, srv.URL+"/positions/0x123")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetResetState(t *testing.T) {
	srv, eng := newTestServer(t)
	alice := tracenet.BytesToAddress([]byte("alice"))
	_, err := eng.JackIn(alice, big.NewInt(100), tracenet.TierProxy)
	require.NoError(t, err)

	code, body := httpGet(t, srv.URL+"/reset")
	require.Equal(t, http.StatusOK, code)
	var st ResetState
	require.NoError(t, json.Unmarshal(body, &st))
	assert.NotZero(t, st.Deadline)
	assert.Equal(t, alice, st.LastDepositor)

	// the freshly armed timer is nowhere near its deadline
	code, _ = httpPost(t, srv.URL+"/reset/trigger", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestScanEndpointsRejectEarly(t *testing.T) {
	srv, _ := newTestServer(t)

	// the first scan is a full interval out
	code, _ := httpPost(t, srv.URL+"/scans/darknet/execute", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = httpPost(t, srv.URL+"/scans/darknet/deaths", `{"candidates":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)

	// the vault tier is never scanned
	code, _ = httpGet(t, srv.URL+"/scans/vault")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEventsQuery(t *testing.T) {
	srv, eng := newTestServer(t)
	alice := tracenet.BytesToAddress([]byte("alice"))
	_, err := eng.JackIn(alice, big.NewInt(100), tracenet.TierProxy)
	require.NoError(t, err)

	code, body := httpGet(t, srv.URL+"/events?kind=jack-in")
	require.Equal(t, http.StatusOK, code)
	var events []*Event
	require.NoError(t, json.Unmarshal(body, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "jack-in", events[0].Kind)
	assert.Equal(t, alice, events[0].User)
	assert.Equal(t, "100", events[0].Amount)

	code, body = httpGet(t, srv.URL+"/events?kind=extract")
	require.Equal(t, http.StatusOK, code)
	events = nil
	require.NoError(t, json.Unmarshal(body, &events))
	assert.Empty(t, events)
}

func TestParseTier(t *testing.T) {
	tier, err := parseTier("darknet")
	require.NoError(t, err)
	assert.Equal(t, tracenet.TierDarknet, tier)

	tier, err = parseTier("3")
	require.NoError(t, err)
	assert.Equal(t, tracenet.TierDarknet, tier)

	_, err = parseTier("mainframe")
	assert.Error(t, err)
	_, err = parseTier("7")
	assert.Error(t, err)
}
