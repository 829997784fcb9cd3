// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
)

// RequestLoggerHandler returns a http handler that logs every request it serves
// while enabled is set.
func RequestLoggerHandler(handler http.Handler, enabled *atomic.Bool, logger log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !enabled.Load() {
			handler.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		handler.ServeHTTP(w, r)
		logger.Info("API Request",
			"URI", r.URL.String(),
			"Method", r.Method,
			"RemoteAddr", r.RemoteAddr,
			"elapsed", time.Since(start),
		)
	})
}
