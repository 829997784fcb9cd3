// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reverts"
)

func TestWrapHandlerFunc(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusOK},
		{"bad request", BadRequest(errors.New("at: invalid")), http.StatusBadRequest},
		{"not found", NotFound(errors.New("token")), http.StatusNotFound},
		{"revert", errors.Wrap(reverts.New("Auction_AuctionNotActive", 1), "view"), http.StatusBadRequest},
		{"timeout", errors.WithMessage(context.DeadlineExceeded, "read state"), http.StatusServiceUnavailable},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := WrapHandlerFunc(func(http.ResponseWriter, *http.Request) error { return tt.err })
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestParseJSON(t *testing.T) {
	var v struct {
		Level string `json:"level"`
	}
	assert.NoError(t, ParseJSON(strings.NewReader(`{"level":"debug"}`), &v))
	assert.Equal(t, "debug", v.Level)
	assert.Error(t, ParseJSON(strings.NewReader(`{"other":1}`), &v))
}
