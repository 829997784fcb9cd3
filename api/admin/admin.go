// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package admin serves the operator endpoints: the log level and the API
// request logger switch.
package admin

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/Increment-Finance/peripheral-contracts-sub004/api/utils"
	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
)

var logger = log.WithContext("pkg", "admin")

// LogLevel is both the request and the response of /admin/loglevel.
type LogLevel struct {
	Level string `json:"level"`
}

// APILogs is both the request and the response of /admin/apilogs.
type APILogs struct {
	Enabled bool `json:"enabled"`
}

var levelNames = []struct {
	name  string
	level slog.Level
}{
	{"trace", log.LevelTrace},
	{"debug", log.LevelDebug},
	{"info", log.LevelInfo},
	{"warn", log.LevelWarn},
	{"error", log.LevelError},
	{"crit", log.LevelCrit},
}

func levelName(l slog.Level) string {
	for _, n := range levelNames {
		if n.level == l {
			return n.name
		}
	}
	return l.String()
}

type admin struct {
	logLevel *slog.LevelVar
	apiLogs  *atomic.Bool
}

// New returns the admin handler. The apilogs routes are left out when
// apiLogs is nil.
func New(logLevel *slog.LevelVar, apiLogs *atomic.Bool) http.HandlerFunc {
	a := &admin{logLevel: logLevel, apiLogs: apiLogs}

	router := mux.NewRouter()
	sub := router.PathPrefix("/admin").Subrouter()

	sub.Path("/loglevel").
		Methods(http.MethodGet).
		Name("admin_get_log_level").
		HandlerFunc(utils.WrapHandlerFunc(a.handleGetLogLevel))
	sub.Path("/loglevel").
		Methods(http.MethodPost).
		Name("admin_post_log_level").
		HandlerFunc(utils.WrapHandlerFunc(a.handlePostLogLevel))

	if apiLogs != nil {
		sub.Path("/apilogs").
			Methods(http.MethodGet).
			Name("admin_get_api_logs").
			HandlerFunc(utils.WrapHandlerFunc(a.handleGetAPILogs))
		sub.Path("/apilogs").
			Methods(http.MethodPost).
			Name("admin_post_api_logs").
			HandlerFunc(utils.WrapHandlerFunc(a.handlePostAPILogs))
	}

	return handlers.CompressHandler(router).ServeHTTP
}

func (a *admin) handleGetLogLevel(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, LogLevel{Level: levelName(a.logLevel.Level())})
}

func (a *admin) handlePostLogLevel(w http.ResponseWriter, r *http.Request) error {
	var req LogLevel
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	for _, n := range levelNames {
		if n.name == req.Level {
			a.logLevel.Set(n.level)
			logger.Info("log level updated", "level", n.name)
			return utils.WriteJSON(w, LogLevel{Level: n.name})
		}
	}
	return utils.BadRequest(errors.Errorf("unknown level %q", req.Level))
}

func (a *admin) handleGetAPILogs(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, APILogs{Enabled: a.apiLogs.Load()})
}

func (a *admin) handlePostAPILogs(w http.ResponseWriter, r *http.Request) error {
	var req APILogs
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	a.apiLogs.Store(req.Enabled)
	logger.Info("api logs updated", "enabled", req.Enabled)
	return utils.WriteJSON(w, APILogs{Enabled: req.Enabled})
}
