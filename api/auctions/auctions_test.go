// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package auctions_test

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Increment-Finance/peripheral-contracts-sub004/api/auctions"
	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/safetymodule"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/test/testchain"
)

const (
	launch    = 1700000000
	slashedAt = launch + 100
)

var ts *httptest.Server

func TestAuctions(t *testing.T) {
	initAuctionsServer(t)
	defer ts.Close()

	t.Run("getSummary", testGetSummary)
	t.Run("getAuction", testGetAuction)
	t.Run("getAuctionLater", testGetAuctionLater)
	t.Run("getUnknownAuction", testGetUnknownAuction)
	t.Run("getWithBadID", testGetWithBadID)
}

func initAuctionsServer(t *testing.T) {
	c, err := testchain.NewDefault()
	require.NoError(t, err)

	p := c.Protocol()
	alice := c.Address("alice")
	inc, err := p.Tokens.Get(c.Address("INC"))
	require.NoError(t, err)
	st, err := p.StakedToken("stINC")
	require.NoError(t, err)

	require.NoError(t, c.Execute(launch+10, func() error {
		if err := inc.Approve(alice, st.Address(), increment.WadOf(1000)); err != nil {
			return err
		}
		return st.Stake(alice, increment.WadOf(1000))
	}))
	require.NoError(t, c.Execute(slashedAt, func() error {
		_, err := p.SafetyModule.SlashAndStartAuction(p.Governance, st.Address(), &safetymodule.SlashParams{
			NumLots:              10,
			LotPrice:             big.NewInt(1_000_000),
			InitialLotSize:       increment.WadOf(9),
			SlashPercent:         new(big.Int).Div(increment.Wad, big.NewInt(10)),
			LotIncreaseIncrement: increment.WadOf(1),
			LotIncreasePeriod:    86400,
			TimeLimit:            864000,
		})
		return err
	}))

	router := mux.NewRouter()
	auctions.New(c.Runtime(), p).Mount(router, "/auctions")
	ts = httptest.NewServer(router)
}

func httpGetAndCheckResponseStatus(t *testing.T, path string, status int) []byte {
	res, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, status, res.StatusCode, string(body))
	return body
}

func testGetSummary(t *testing.T) {
	body := httpGetAndCheckResponseStatus(t, "/auctions", 200)
	var summary auctions.Summary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, uint64(1), summary.NextID)
	assert.Equal(t, "USDC", summary.PaymentToken.Name)
	assert.False(t, summary.Paused)
}

func testGetAuction(t *testing.T) {
	body := httpGetAndCheckResponseStatus(t, "/auctions/0", 200)
	var a auctions.Auction
	require.NoError(t, json.Unmarshal(body, &a))
	assert.Equal(t, "stINC", a.StakingToken.Name)
	assert.Equal(t, "INC", a.Token.Name)
	assert.True(t, a.Active)
	assert.Equal(t, uint64(10), a.RemainingLots)
	assert.Equal(t, "1", a.LotPrice.Value)
	assert.Equal(t, "1000000", a.LotPrice.Wei)
	assert.Equal(t, "9", a.CurrentLotSize.Value)
	assert.Equal(t, "100", a.Balance.Value)
	assert.Equal(t, uint64(slashedAt), a.StartTime)
	assert.Equal(t, uint64(slashedAt+864000), a.EndTime)
	assert.Equal(t, "0", a.FundsRaised.Wei)
}

func testGetAuctionLater(t *testing.T) {
	// the lot size grows by one increment per period, capped at balance / remaining lots
	for _, periods := range []int{1, 3} {
		at := strconv.Itoa(slashedAt + periods*86400)
		body := httpGetAndCheckResponseStatus(t, "/auctions/0?at="+at, 200)
		var a auctions.Auction
		require.NoError(t, json.Unmarshal(body, &a))
		assert.Equal(t, "10", a.CurrentLotSize.Value)
	}
}

func testGetUnknownAuction(t *testing.T) {
	httpGetAndCheckResponseStatus(t, "/auctions/7", 404)
}

func testGetWithBadID(t *testing.T) {
	httpGetAndCheckResponseStatus(t, "/auctions/first", 400)
}
