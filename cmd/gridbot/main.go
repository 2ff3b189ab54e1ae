// Command gridbot runs one grid trading instance against the paper
// exchange simulator, serving its dashboard, health check, and Prometheus
// metrics on the configured HTTP port.
//
// Boot sequence:
//  1. config.LoadEnv()     - read .env (no shell exports required)
//  2. config.Load()        - build and validate the grid's AppConfig
//  3. wire the paper exchange
//  4. start the HTTP mux (/healthz, /metrics; /status is added in step 5)
//  5. load-or-create the persisted state and build the level or zone
//     controller, per GRID_VARIANT
//  6. run the supervisor loop until interrupted or a fatal error occurs
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kallisto-labs/gridbot/internal/config"
	"github.com/kallisto-labs/gridbot/internal/dashboard"
	"github.com/kallisto-labs/gridbot/internal/exchange"
	"github.com/kallisto-labs/gridbot/internal/gridcore"
	"github.com/kallisto-labs/gridbot/internal/level"
	"github.com/kallisto-labs/gridbot/internal/metrics"
	"github.com/kallisto-labs/gridbot/internal/risk"
	"github.com/kallisto-labs/gridbot/internal/store"
	"github.com/kallisto-labs/gridbot/internal/supervisor"
	"github.com/kallisto-labs/gridbot/internal/zone"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	config.LoadEnv()
	app, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	paper := exchange.NewPaperExchange(app.PaperFee, 100000)
	prec := app.Grid.Precision()
	paper.SetAssetPrecision(app.Grid.Asset, prec)
	app.Grid.SizeDecimals = prec.SizeDecimals

	metrics.SetConsecutiveErrors(0)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", dashboard.Healthz)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", app.Port), Handler: mux}
	go func() {
		log.Printf("gridbot: serving %s/status and /metrics on :%d", app.Grid.Asset, app.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("gridbot: http server: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var watcher *risk.Watcher
	var margin supervisor.MarginSource
	if app.Grid.MarketType == gridcore.MarketPerp {
		watcher = risk.NewWatcher(app.Grid.MaxMarginRatio)
		margin = paper
	}

	var runErr error
	switch app.Variant {
	case config.VariantZone:
		runErr = runZone(ctx, app, paper, mux, watcher, margin)
	default:
		runErr = runLevel(ctx, app, paper, mux, watcher, margin)
	}
	if runErr != nil {
		log.Printf("gridbot: stopped: %v", runErr)
	}

	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}

func runLevel(ctx context.Context, app config.AppConfig, paper *exchange.PaperExchange, mux *http.ServeMux, watcher *risk.Watcher, margin supervisor.MarginSource) error {
	fresh := func() store.GridState {
		levels := level.BuildInitialLevels(app.Grid, app.Grid.Precision())
		return store.GridState{
			Status:         gridcore.StatusWaitingForEntry,
			Levels:         levels,
			OIDToLevel:     map[string]int{},
			ConfigSnapshot: gridcore.SnapshotOf(app.Grid),
		}
	}
	st, err := store.LoadOrCreate(app.Grid.StateFile, app.Grid.StateSaveInterval, gridcore.SnapshotOf(app.Grid), fresh)
	if err != nil {
		log.Fatalf("gridbot: refusing to start: %v", err)
	}

	ctrl := level.NewController(app.Grid, app.Grid.Precision(), paper, st)
	mux.HandleFunc("/status", dashboard.Handler(func() any { return ctrl.StateSummary() }))

	return runSupervisor(ctx, app, paper, ctrl, watcher, margin)
}

func runZone(ctx context.Context, app config.AppConfig, paper *exchange.PaperExchange, mux *http.ServeMux, watcher *risk.Watcher, margin supervisor.MarginSource) error {
	seedPrice := (app.Grid.LowerPrice + app.Grid.UpperPrice) / 2
	fresh := func() store.GridState {
		zones := zone.BuildInitialZones(app.Grid, app.Grid.Precision(), seedPrice)
		return store.GridState{
			Status:          gridcore.StatusRunning,
			Zones:           zones,
			OIDToLevel:      map[string]int{},
			ConfigSnapshot:  gridcore.SnapshotOf(app.Grid),
			CurrentPosition: zone.InitialPosition(zones),
			LastMidPrice:    seedPrice,
		}
	}
	st, err := store.LoadOrCreate(app.Grid.StateFile, app.Grid.StateSaveInterval, gridcore.SnapshotOf(app.Grid), fresh)
	if err != nil {
		log.Fatalf("gridbot: refusing to start: %v", err)
	}

	ctrl := zone.NewController(app.Grid, app.Grid.Precision(), paper, st)
	mux.HandleFunc("/status", dashboard.Handler(func() any { return ctrl.Status() }))

	return runSupervisor(ctx, app, paper, ctrl, watcher, margin)
}

func runSupervisor(ctx context.Context, app config.AppConfig, paper *exchange.PaperExchange, ctrl supervisor.Controller, watcher *risk.Watcher, margin supervisor.MarginSource) error {
	priceCh, err := paper.PriceFeed().Subscribe(ctx, app.Grid.Asset)
	if err != nil {
		return err
	}
	fillCh, err := paper.FillFeed().Subscribe(ctx)
	if err != nil {
		return err
	}

	seedPrice := (app.Grid.LowerPrice + app.Grid.UpperPrice) / 2
	paper.UpdatePrice(ctx, app.Grid.Asset, seedPrice)

	r := &supervisor.Runner{
		Asset:   app.Grid.Asset,
		Config:  app.Supervisor,
		Ctrl:    ctrl,
		PriceCh: priceCh,
		FillCh:  fillCh,
		Watcher: watcher,
		Margin:  margin,
	}
	return r.Run(ctx)
}
