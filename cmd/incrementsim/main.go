// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/urfave/cli.v1"

	"github.com/Increment-Finance/peripheral-contracts-sub004/api"
	"github.com/Increment-Finance/peripheral-contracts-sub004/increment"
	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
	"github.com/Increment-Finance/peripheral-contracts-sub004/metrics"
	"github.com/Increment-Finance/peripheral-contracts-sub004/runtime"
	"github.com/Increment-Finance/peripheral-contracts-sub004/scenario"
)

var (
	version   string
	gitCommit string
	gitTag    string
	logger    = log.WithContext("pkg", "incrementsim")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fullVersion()
	app.Name = "incrementsim"
	app.Usage = "Simulator of the Increment rewards, safety module and auctions"
	app.Copyright = "2025 The VeChainThor developers"
	app.Flags = []cli.Flag{
		configFlag,
		dataDirFlag,
		cacheFlag,
		verbosityFlag,
		jsonLogsFlag,
	}
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "execute a scenario, one block per step, and print the receipts",
			Flags:  []cli.Flag{scenarioFlag, outputFlag},
			Action: runAction,
		},
		{
			Name:  "serve",
			Usage: "serve the read only API over the protocol state",
			Flags: []cli.Flag{
				apiAddrFlag,
				apiCorsFlag,
				apiTimeoutFlag,
				enableAPILogsFlag,
				pprofFlag,
				enableMetricsFlag,
				enableAdminFlag,
				adminAddrFlag,
			},
			Action: serveAction,
		},
		{
			Name:      "storage",
			Usage:     "print the committed storage slots of a contract",
			ArgsUsage: "<name or address>",
			Action:    storageAction,
		},
		{
			Name:   "names",
			Usage:  "print the address of every configured name",
			Action: namesAction,
		},
	}
	return app
}

func runAction(ctx *cli.Context) error {
	initLogger(ctx)

	path := ctx.String(scenarioFlag.Name)
	if path == "" {
		return errors.New("missing --" + scenarioFlag.Name)
	}
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}

	db, _, err := openStateDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	rt, p, err := openProtocol(ctx, db)
	if err != nil {
		return err
	}
	defer rt.Close()

	exitCtx, cancel := handleExitSignal()
	defer cancel()

	results, runErr := scenario.NewRunner(rt, p).Run(exitCtx, sc)

	var w io.Writer = ctx.App.Writer
	if out := ctx.String(outputFlag.Name); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return errors.Wrap(err, "create output")
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return errors.Wrap(err, "write results")
	}
	return runErr
}

func serveAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()
	initLogger(ctx)

	metricsEnabled := ctx.Bool(enableMetricsFlag.Name)
	if metricsEnabled {
		metrics.InitializePrometheusMetrics()
	}

	db, where, err := openStateDB(ctx)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing state database..."); db.Close() }()

	rt, p, err := openProtocol(ctx, db)
	if err != nil {
		return err
	}
	defer rt.Close()

	exitCtx, cancel := handleExitSignal()
	defer cancel()

	apiLogs := &atomic.Bool{}
	apiLogs.Store(ctx.Bool(enableAPILogsFlag.Name))

	handler, closeAPI := api.New(rt, p, api.Options{
		AllowedOrigins:  ctx.String(apiCorsFlag.Name),
		PprofOn:         ctx.Bool(pprofFlag.Name),
		EnableReqLogger: apiLogs,
		EnableMetrics:   metricsEnabled,
	})
	var apiHandler http.Handler = handler
	if timeout := ctx.Int(apiTimeoutFlag.Name); timeout > 0 {
		apiHandler = handleAPITimeout(apiHandler, time.Duration(timeout)*time.Millisecond)
	}
	apiHandler = requestBodyLimit(apiHandler)

	apiSrv, apiListener, err := newServer(exitCtx, ctx.String(apiAddrFlag.Name), apiHandler)
	if err != nil {
		closeAPI()
		return err
	}

	group, groupCtx := errgroup.WithContext(exitCtx)
	servers := []*http.Server{apiSrv}
	group.Go(func() error { return serveUntilClosed(apiSrv.Serve(apiListener)) })

	adminURL := "disabled"
	if ctx.Bool(enableAdminFlag.Name) {
		adminSrv, adminListener, err := startAdminServer(exitCtx, ctx.String(adminAddrFlag.Name), apiLogs)
		if err != nil {
			closeAPI()
			apiSrv.Close()
			return err
		}
		servers = append(servers, adminSrv)
		adminURL = "http://" + adminListener.Addr().String() + "/admin"
		group.Go(func() error { return serveUntilClosed(adminSrv.Serve(adminListener)) })
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("stopping API server...")
		closeAPI()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("shutdown server", "err", err)
			}
		}
		return nil
	})

	if err := printStartupMessage(ctx.App.Writer, rt, where, "http://"+apiListener.Addr().String()+"/", adminURL); err != nil {
		logger.Warn("print startup message", "err", err)
	}
	return group.Wait()
}

func namesAction(ctx *cli.Context) error {
	initLogger(ctx)

	db, _, err := openStateDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	rt, p, err := openProtocol(ctx, db)
	if err != nil {
		return err
	}
	defer rt.Close()

	names := make(map[string]string)
	for _, name := range p.Names() {
		addr, err := p.Resolve(name)
		if err != nil {
			return err
		}
		names[name] = addr.String()
	}
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(names)
}

func storageAction(ctx *cli.Context) error {
	initLogger(ctx)

	if ctx.NArg() != 1 {
		return errors.New("expected one contract name or address")
	}

	db, _, err := openStateDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	rt, p, err := openProtocol(ctx, db)
	if err != nil {
		return err
	}
	defer rt.Close()

	addr, err := p.Resolve(ctx.Args().First())
	if err != nil {
		return err
	}
	slots := make(map[string]string)
	if err := rt.Env().State().ForEachCommitted(addr, func(key increment.Bytes32, value rlp.RawValue) bool {
		slots[key.String()] = hexutil.Encode(value)
		return true
	}); err != nil {
		return err
	}
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(slots)
}

func serveUntilClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func printStartupMessage(w io.Writer, rt *runtime.Runtime, dataDir, apiURL, adminURL string) error {
	head, err := rt.Head()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, `Starting %v
    Head         [ #%v @%v ]
    Data dir     [ %v ]
    API portal   [ %v ]
    Admin portal [ %v ]
`,
		"incrementsim "+fullVersion(),
		head.Number, time.Unix(int64(head.Time), 0).UTC(), //#nosec G115
		dataDir,
		apiURL,
		adminURL)
	return err
}
