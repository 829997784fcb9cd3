// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api serves read only views of the deployed protocol over HTTP.
package api

import (
	"net/http"
	"net/http/pprof"
	"strings"
	"sync/atomic"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Increment-Finance/peripheral-contracts-sub004/api/auctions"
	"github.com/Increment-Finance/peripheral-contracts-sub004/api/rewards"
	"github.com/Increment-Finance/peripheral-contracts-sub004/api/staking"
	"github.com/Increment-Finance/peripheral-contracts-sub004/api/subscriptions"
	"github.com/Increment-Finance/peripheral-contracts-sub004/api/utils"
	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
	"github.com/Increment-Finance/peripheral-contracts-sub004/metrics"
	"github.com/Increment-Finance/peripheral-contracts-sub004/protocol"
	"github.com/Increment-Finance/peripheral-contracts-sub004/runtime"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins  string
	PprofOn         bool
	EnableReqLogger *atomic.Bool
	EnableMetrics   bool
}

// New return api router
func New(rt *runtime.Runtime, p *protocol.Protocol, opts Options) (http.HandlerFunc, func()) {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	router.Path("/head").
		Methods(http.MethodGet).
		Name("head").
		HandlerFunc(utils.WrapHandlerFunc(func(w http.ResponseWriter, _ *http.Request) error {
			head, err := rt.Head()
			if err != nil {
				return err
			}
			return utils.WriteJSON(w, head)
		}))

	rewards.New(rt, p).
		Mount(router, "/rewards")
	auctions.New(rt, p).
		Mount(router, "/auctions")
	staking.New(rt, p).
		Mount(router, "/staking")
	subs := subscriptions.New(rt, origins)
	subs.Mount(router, "/subscriptions")

	if opts.PprofOn {
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}

	if opts.EnableMetrics && metrics.Enabled() {
		router.PathPrefix("/metrics").Handler(metrics.HTTPHandler())
		router.Use(metricsMiddleware)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)

	if opts.EnableReqLogger != nil {
		handler = RequestLoggerHandler(handler, opts.EnableReqLogger, logger)
	}

	return handler.ServeHTTP, subs.Close // subscriptions hold hijacked conns, which need to be closed
}
