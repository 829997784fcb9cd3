// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
	"github.com/Increment-Finance/peripheral-contracts-sub004/scenario"
)

const (
	testConfig   = "../../protocol/testdata/increment.yaml"
	testScenario = "../../scenario/testdata/basic.yaml"
)

func runApp(t *testing.T, args ...string) (string, error) {
	defer log.Discard()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(append([]string{"incrementsim", "--verbosity", "0"}, args...))
	return out.String(), err
}

func TestRunScenario(t *testing.T) {
	out, err := runApp(t, "--config", testConfig, "run", "--scenario", testScenario)
	require.NoError(t, err)

	var results []*scenario.Result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 16)
	assert.Equal(t, "approve", results[0].Action)
	assert.True(t, results[2].Receipt.Reverted)
	assert.Equal(t, "ERC20_InsufficientAllowance", results[2].Receipt.Revert)
	require.NotNil(t, results[8].AuctionID)
}

func TestRunToOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	out, err := runApp(t, "--config", testConfig, "run", "--scenario", testScenario, "--output", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var results []*scenario.Result
	require.NoError(t, json.Unmarshal(data, &results))
	assert.Len(t, results, 16)
}

func TestRunMissingFlags(t *testing.T) {
	_, err := runApp(t, "run", "--scenario", testScenario)
	assert.ErrorContains(t, err, "missing --config")

	_, err = runApp(t, "--config", testConfig, "run")
	assert.ErrorContains(t, err, "missing --scenario")
}

func TestRunFailingStep(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fail.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: redeem too early
steps:
  - at: 1700000100
    action: redeem
    caller: alice
    args: {token: stINC, amount: "1"}
`), 0o600))

	out, err := runApp(t, "--config", testConfig, "run", "--scenario", path)
	assert.ErrorContains(t, err, "step 0 (redeem)")

	var results []*scenario.Result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.True(t, results[0].Receipt.Reverted)
}

func TestPersistentDataDir(t *testing.T) {
	dataDir := t.TempDir()
	_, err := runApp(t, "--config", testConfig, "--data-dir", dataDir, "run", "--scenario", testScenario)
	require.NoError(t, err)

	// the second open resumes the deployed protocol instead of deploying again
	_, err = runApp(t, "--config", testConfig, "--data-dir", dataDir, "run", "--scenario", testScenario)
	assert.ErrorContains(t, err, "block time before head")

	out, err := runApp(t, "--config", testConfig, "--data-dir", dataDir, "names")
	require.NoError(t, err)
	var names map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, increment.NamedAddress("alice").String(), names["alice"])
	assert.Contains(t, names, "stINC")
}

func TestHandleAPITimeout(t *testing.T) {
	var deadlines []bool
	h := handleAPITimeout(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, ok := r.Context().Deadline()
		deadlines = append(deadlines, ok)
	}), time.Second)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/rewards/perp/tokens", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/subscriptions/receipts", nil))
	assert.Equal(t, []bool{true, false}, deadlines)
}

func TestRequestBodyLimit(t *testing.T) {
	h := requestBodyLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 300*1024))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAdminServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, listener, err := startAdminServer(ctx, "localhost:0", nil)
	require.NoError(t, err)
	go srv.Serve(listener)
	defer srv.Close()

	res, err := http.Get("http://" + listener.Addr().String() + "/admin/loglevel")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestStorage(t *testing.T) {
	out, err := runApp(t, "--config", testConfig, "storage", "stINC")
	require.NoError(t, err)
	var slots map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &slots))
	assert.NotEmpty(t, slots)
	for slot, value := range slots {
		assert.True(t, strings.HasPrefix(slot, "0x"))
		assert.True(t, strings.HasPrefix(value, "0x"))
	}

	_, err = runApp(t, "--config", testConfig, "storage")
	assert.Error(t, err)
}
