package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"conduitcraft.ai/internal/metrics"
	"conduitcraft.ai/internal/protocol"
	"conduitcraft.ai/internal/sim/catalogs"
	"conduitcraft.ai/internal/sim/multiworld"
	"conduitcraft.ai/internal/sim/tuning"
	"conduitcraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		worldsPath = flag.String("worlds", "", "multi-world config path (default: <configs>/worlds.yaml; built-in single world if missing)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite audit/recalc index")
		stateFile  = flag.String("state_file", "", "client->world routing state (default: <data>/routing.json)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	wp := strings.TrimSpace(*worldsPath)
	if wp == "" {
		wp = filepath.Join(*configDir, "worlds.yaml")
	}
	if _, err := os.Stat(wp); err != nil {
		logger.Printf("worlds config not found (%s); running a single default world", wp)
		wp = ""
	}
	mcfg, err := multiworld.Load(wp)
	if err != nil {
		logger.Fatalf("load worlds config: %v", err)
	}

	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	rtCfg := serverRuntimeConfig{
		DataDir:     *dataDir,
		EnableAdmin: envBool("CC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		EnablePprof: envBool("CC_ENABLE_PPROF_HTTP", false),
	}
	collector := metrics.NewCollector("conduit")
	runtimes, closeLogs, err := buildRuntimes(rtCfg, mcfg, tune, cats, idx, collector)
	if err != nil {
		logger.Fatalf("create worlds: %v", err)
	}
	defer closeLogs()

	sf := strings.TrimSpace(*stateFile)
	if sf == "" {
		sf = filepath.Join(*dataDir, "routing.json")
	}
	mgr, err := multiworld.NewManager(mcfg, mcfg.Manifest(tune), runtimes, sf)
	if err != nil {
		logger.Fatalf("multiworld manager: %v", err)
	}
	defer mgr.Close()

	ctx, cancel := signalContext()
	defer cancel()

	worldsDone := make(chan struct{})
	go func() {
		defer close(worldsDone)
		if err := mgr.RunAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("worlds stopped: %v", err)
			cancel()
		}
	}()

	wsOpts := ws.Options{
		Catalogs:      catalogDigests(cats, tune),
		SessionOutbox: tune.Limits.SessionOutbox,
		MaxLineBytes:  tune.Limits.MaxLineBytes,
	}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(rtCfg, mgr, idx, collector, wsOpts, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s worlds=%v default=%s", *addr, mgr.WorldIDs(), mgr.DefaultWorldID())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
	}
	cancel()
	<-worldsDone
	if idx != nil {
		ctx3, cancel3 := context.WithTimeout(context.Background(), 5*time.Second)
		_ = idx.Flush(ctx3)
		cancel3()
	}
}

// catalogDigests is the WELCOME catalog block: palette and defs digests
// plus a digest of the tuning actually applied.
func catalogDigests(cats *catalogs.Catalogs, tune tuning.Tuning) protocol.CatalogDigests {
	b, _ := json.Marshal(tune)
	sum := sha256.Sum256(b)
	return protocol.CatalogDigests{
		BlockPalette: protocol.DigestRef{Digest: cats.Blocks.PaletteDigest, Count: len(cats.Blocks.Palette)},
		BlockDefs:    cats.Blocks.DefsDigest,
		TuningDigest: hex.EncodeToString(sum[:]),
	}
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

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
