package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"guildcorp.gg/internal/game"
	"guildcorp.gg/internal/persistence/feedlog"
	"guildcorp.gg/internal/service"
	"guildcorp.gg/internal/store"
	"guildcorp.gg/internal/transport/httpapi"
	"guildcorp.gg/internal/transport/ws"
	"guildcorp.gg/internal/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Int64("seed", 0, "rng seed (0 = time-based)")
		tickerSec  = flag.Int("ticker_interval", 30, "share ticker broadcast interval, seconds")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	st, err := store.Open(filepath.Join(*dataDir, "game.db"))
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	clock := service.SystemClock{}

	journal := feedlog.NewJournal(*dataDir, logger)
	defer journal.Close()
	feedWS := ws.NewServer(st, tune, clock, logger)
	feed := service.MultiSink(journal, feedWS)

	bidding := service.NewBidding(st, tune, clock, logger)
	sessions := service.NewSessions(st, tune, clock, feed, rand.New(rand.NewSource(rngSeed)), logger)
	prog := service.NewProgression(st, tune, clock, rand.New(rand.NewSource(rngSeed+1)), logger)
	timekeeper := service.NewTimekeeper(st, tune, clock, bidding, feed, rand.New(rand.NewSource(rngSeed+2)), logger)
	botMarket := service.NewBotMarket(st, tune, clock, bidding, feed, rand.New(rand.NewSource(rngSeed+3)), logger)

	ctx, cancel := signalContext()
	defer cancel()

	timekeeper.Start(ctx)
	defer timekeeper.Stop()
	botMarket.Start(ctx)
	defer botMarket.Stop()
	feedWS.Start(ctx, time.Duration(*tickerSec)*time.Second)
	defer feedWS.Stop()

	api := httpapi.NewServer(st, tune, clock, sessions, bidding, prog, logger)

	mux := http.NewServeMux()
	mux.Handle("/api/", api.Routes())
	mux.HandleFunc("/v1/ws", feedWS.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, st, logger)
	})
	if envBool("GC_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// writeMetrics emits a minimal Prometheus exposition of live game state.
func writeMetrics(rw http.ResponseWriter, st *store.Store, logger *log.Logger) {
	var (
		sessions  int
		openRuns  int
		miningOps int
	)
	err := st.View(context.Background(), func(tx *store.Tx) error {
		ss, err := tx.ActiveSessions()
		if err != nil {
			return err
		}
		sessions = len(ss)
		runs, err := tx.RunsByStatus(game.RunPreparing, game.RunActive, game.RunSuspended)
		if err != nil {
			return err
		}
		openRuns = len(runs)
		ops, err := tx.ActiveMiningOps()
		if err != nil {
			return err
		}
		miningOps = len(ops)
		return nil
	})
	if err != nil {
		logger.Printf("metrics: %v", err)
		return
	}

	fmt.Fprintf(rw, "# HELP guildcorp_sessions_active Active game sessions.\n")
	fmt.Fprintf(rw, "# TYPE guildcorp_sessions_active gauge\n")
	fmt.Fprintf(rw, "guildcorp_sessions_active %d\n", sessions)

	fmt.Fprintf(rw, "# HELP guildcorp_runs_open Runs not yet resolved.\n")
	fmt.Fprintf(rw, "# TYPE guildcorp_runs_open gauge\n")
	fmt.Fprintf(rw, "guildcorp_runs_open %d\n", openRuns)

	fmt.Fprintf(rw, "# HELP guildcorp_mining_ops_active Extraction jobs in progress.\n")
	fmt.Fprintf(rw, "# TYPE guildcorp_mining_ops_active gauge\n")
	fmt.Fprintf(rw, "guildcorp_mining_ops_active %d\n", miningOps)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
