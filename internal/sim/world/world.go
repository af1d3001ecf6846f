package world

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"conduitcraft.ai/internal/sim/catalogs"
	"conduitcraft.ai/internal/sim/conduit/network"
	"conduitcraft.ai/internal/sim/world/terrain/store"
)

type WorldConfig struct {
	ID         string
	TickRateHz int
	Bounds     store.Bounds

	MaxNetworkSize           int
	InvariantCheckEveryTicks int
	PreloadChunkRadius       int
	RequestQueue             int
}

// World is a single-threaded authoritative conduit simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	logger   *log.Logger

	tick atomic.Uint64

	chunks   *store.ChunkStore
	conduits *network.Manager

	observers map[string]*observer

	// Unsubscribes that could not be queued; reaped by broadcast.
	lateMu          sync.Mutex
	lateUnsub       map[string]struct{}
	unsubscribeWait time.Duration

	commands    chan commandReq
	subscribe   chan subscribeReq
	unsubscribe chan string
	stateReq    chan stateReq
	stop        chan struct{}
	stopOnce    sync.Once
	loopDone    chan struct{}

	// Optional sinks (may be nil). Implemented in internal/persistence/* and internal/metrics.
	auditLogger  AuditLogger
	recalcLogger RecalcLogger
	metrics      Metrics

	// Actor of the command being executed.
	curActor string
}

type Options struct {
	Logger       *log.Logger
	AuditLogger  AuditLogger
	RecalcLogger RecalcLogger
	Metrics      Metrics
}

func New(cfg WorldConfig, cats *catalogs.Catalogs, opts Options) (*World, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("world id must not be empty")
	}
	if cats == nil {
		return nil, fmt.Errorf("world %s: nil catalogs", cfg.ID)
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 20
	}
	if cfg.RequestQueue <= 0 {
		cfg.RequestQueue = 1024
	}
	if cfg.Bounds.MinY > cfg.Bounds.MaxY {
		return nil, fmt.Errorf("world %s: min_y %d > max_y %d", cfg.ID, cfg.Bounds.MinY, cfg.Bounds.MaxY)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[world "+cfg.ID+"] ", log.LstdFlags|log.Lmicroseconds)
	}

	w := &World{
		cfg:             cfg,
		catalogs:        cats,
		logger:          logger,
		chunks:          store.NewChunkStore(cfg.Bounds),
		observers:       map[string]*observer{},
		lateUnsub:       map[string]struct{}{},
		unsubscribeWait: time.Second,
		commands:        make(chan commandReq, cfg.RequestQueue),
		subscribe:       make(chan subscribeReq, 64),
		unsubscribe:     make(chan string, 64),
		stateReq:        make(chan stateReq, 16),
		stop:            make(chan struct{}),
		loopDone:        make(chan struct{}),
		auditLogger:     opts.AuditLogger,
		recalcLogger:    opts.RecalcLogger,
		metrics:         opts.Metrics,
	}
	w.conduits = network.New(w.chunks, network.Options{
		MaxNetworkSize: cfg.MaxNetworkSize,
		Logger:         logger,
		OnRecalc:       w.onRecalc,
		OnRetire:       w.onRetire,
	})

	r := cfg.PreloadChunkRadius
	for cz := -r; cz <= r; cz++ {
		for cx := -r; cx <= r; cx++ {
			w.chunks.LoadChunk(store.ChunkKey{CX: cx, CZ: cz})
		}
	}
	w.publishStats()
	return w, nil
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) Catalogs() *catalogs.Catalogs { return w.catalogs }
