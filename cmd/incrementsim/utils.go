// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/Increment-Finance/peripheral-contracts-sub004/api/admin"
	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
	"github.com/Increment-Finance/peripheral-contracts-sub004/lvldb"
	"github.com/Increment-Finance/peripheral-contracts-sub004/protocol"
	"github.com/Increment-Finance/peripheral-contracts-sub004/runtime"
	"github.com/Increment-Finance/peripheral-contracts-sub004/state"
	"github.com/Increment-Finance/peripheral-contracts-sub004/xenv"
)

func initLogger(ctx *cli.Context) {
	verbosity := ctx.GlobalInt(verbosityFlag.Name)
	if ctx.GlobalBool(jsonLogsFlag.Name) {
		log.SetupJSON(os.Stderr, verbosity)
		return
	}
	useColor := (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
	log.Setup(os.Stderr, verbosity, useColor)
}

// openStateDB opens the database under data-dir, or an in-memory one when
// the flag is empty.
func openStateDB(ctx *cli.Context) (*lvldb.LevelDB, string, error) {
	dataDir := ctx.GlobalString(dataDirFlag.Name)
	if dataDir == "" {
		db, err := lvldb.NewMem()
		return db, "memory", err
	}
	path := filepath.Join(dataDir, "state.db")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, "", errors.Wrapf(err, "create data dir [%v]", dataDir)
	}
	db, err := lvldb.New(path, lvldb.Options{
		CacheSize:              ctx.GlobalInt(cacheFlag.Name),
		OpenFilesCacheCapacity: 64,
		SyncCommits:            true,
	})
	if err != nil {
		return nil, "", errors.WithMessagef(err, "open state database [%v]", path)
	}
	return db, path, nil
}

// openProtocol binds the configured protocol to db and deploys it on a
// fresh database.
func openProtocol(ctx *cli.Context, db *lvldb.LevelDB) (*runtime.Runtime, *protocol.Protocol, error) {
	path := ctx.GlobalString(configFlag.Name)
	if path == "" {
		return nil, nil, errors.New("missing --" + configFlag.Name)
	}
	cfg, err := protocol.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}

	env := xenv.New(state.New(db), &xenv.BlockContext{})
	rt, err := runtime.New(env)
	if err != nil {
		return nil, nil, err
	}
	p, err := protocol.Open(env, cfg)
	if err != nil {
		return nil, nil, err
	}

	deployed, err := p.IsDeployed()
	if err != nil {
		return nil, nil, err
	}
	if deployed {
		head, err := rt.Head()
		if err != nil {
			return nil, nil, err
		}
		logger.Info("resuming deployed protocol", "number", head.Number, "time", head.Time)
		return rt, p, nil
	}

	receipt, err := rt.Execute(cfg.LaunchTime, p.Deploy)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "deploy")
	}
	if receipt.Reverted {
		return nil, nil, errors.Errorf("deploy reverted: %s", receipt.Reason)
	}
	return rt, p, nil
}

// handleAPITimeout bounds request contexts. Subscriptions live as long as
// their websocket and are left alone.
func handleAPITimeout(h http.Handler, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/subscriptions") {
			h.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestBodyLimit caps request bodies at 200 KiB.
func requestBodyLimit(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 200*1024)
		h.ServeHTTP(w, r)
	})
}

// newServer listens on addr. Requests served by the returned server carry ctx.
func newServer(ctx context.Context, addr string, handler http.Handler) (*http.Server, net.Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "listen addr [%v]", addr)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	return srv, listener, nil
}

func startAdminServer(ctx context.Context, addr string, apiLogs *atomic.Bool) (*http.Server, net.Listener, error) {
	return newServer(ctx, addr, admin.New(log.Level(), apiLogs))
}

func handleExitSignal() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(exitSignalCh)

		select {
		case sig := <-exitSignalCh:
			logger.Info("exit signal received", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
