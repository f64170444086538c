// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/gridrun/tracenet/admin"
	"github.com/gridrun/tracenet/api"
	"github.com/gridrun/tracenet/config"
	"github.com/gridrun/tracenet/engine"
	"github.com/gridrun/tracenet/log"
	"github.com/gridrun/tracenet/metrics"
	"github.com/gridrun/tracenet/tracenet"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "main")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "TraceNet",
		Usage:     "Survival staking core service",
		Copyright: "2025 GridRun <https://gridrun.io/>",
		Flags: []cli.Flag{
			dataDirFlag,
			configFlag,
			apiAddrFlag,
			apiCorsFlag,
			adminAddrFlag,
			metricsAddrFlag,
			verbosityFlag,
			enableAPILogsFlag,
			authorityFlag,
			treasuryFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	logLevel := initLogger(ctx)

	cfg, err := config.Load(ctx.String(configFlag.Name))
	if err != nil {
		fatal(err)
	}
	if s := ctx.String(authorityFlag.Name); s != "" {
		cfg.BoostAuthority = s
	}
	if s := ctx.String(treasuryFlag.Name); s != "" {
		cfg.Treasury = s
	}
	engineCfg, err := cfg.Engine()
	if err != nil {
		fatal(err)
	}

	dataDir := ctx.String(dataDirFlag.Name)
	mainDB := openMainDB(dataDir)
	defer func() { logger.Info("closing main database..."); mainDB.Close() }()

	eventDB := openEventDB(dataDir)
	defer func() { logger.Info("closing event database..."); eventDB.Close() }()

	metricsAddr := ctx.String(metricsAddrFlag.Name)
	if metricsAddr != "" {
		metrics.InitializePrometheusMetrics()
	}

	eng, err := engine.New(mainDB, eventDB, newSoloToken(mainDB), &soloBeacon{}, engineCfg)
	if err != nil {
		fatal(err)
	}

	handler := api.New(eng, api.Options{
		AllowedOrigins:  ctx.String(apiCorsFlag.Name),
		EnableReqLogger: ctx.Bool(enableAPILogsFlag.Name),
		EnableMetrics:   metricsAddr != "",
	})

	var group errgroup.Group
	shutdown := handleExitSignal()

	apiSrv := &http.Server{Handler: handler}
	apiListener, err := net.Listen("tcp", ctx.String(apiAddrFlag.Name))
	if err != nil {
		fatalf("listen API addr '%v': %v", ctx.String(apiAddrFlag.Name), err)
	}
	group.Go(func() error {
		logger.Info("API service started", "addr", apiListener.Addr())
		if err := apiSrv.Serve(apiListener); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	var adminSrv *http.Server
	if adminAddr := ctx.String(adminAddrFlag.Name); adminAddr != "" {
		adminSrv = &http.Server{Handler: admin.HTTPHandler(logLevel, eng)}
		adminListener, err := net.Listen("tcp", adminAddr)
		if err != nil {
			fatalf("listen admin addr '%v': %v", adminAddr, err)
		}
		group.Go(func() error {
			logger.Info("admin service started", "addr", adminListener.Addr())
			if err := adminSrv.Serve(adminListener); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	var metricsSrv *http.Server
	if metricsAddr != "" {
		metricsSrv = &http.Server{Handler: metrics.HTTPHandler()}
		metricsListener, err := net.Listen("tcp", metricsAddr)
		if err != nil {
			fatalf("listen metrics addr '%v': %v", metricsAddr, err)
		}
		group.Go(func() error {
			logger.Info("metrics service started", "addr", metricsListener.Addr())
			if err := metricsSrv.Serve(metricsListener); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-shutdown
		logger.Info("shutting down...")
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(stopCtx)
		}
		if adminSrv != nil {
			_ = adminSrv.Shutdown(stopCtx)
		}
		return apiSrv.Shutdown(stopCtx)
	})

	printStartupMessage(ctx, engineCfg)
	return group.Wait()
}

func printStartupMessage(ctx *cli.Context, cfg *engine.Config) {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		dataDir = "Memory"
	}
	fmt.Printf(`Starting %v
    Version     %v
    Data dir    [%v]
    API portal  [http://%v/]
    Tiers       [%v]
`,
		"TraceNet",
		fullVersion(),
		dataDir,
		ctx.String(apiAddrFlag.Name),
		tracenet.TierCount,
	)
}
