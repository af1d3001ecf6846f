package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"conduitcraft.ai/internal/metrics"
	persistlog "conduitcraft.ai/internal/persistence/log"
	"conduitcraft.ai/internal/protocol"
	"conduitcraft.ai/internal/sim/catalogs"
	"conduitcraft.ai/internal/sim/multiworld"
	"conduitcraft.ai/internal/sim/tuning"
	"conduitcraft.ai/internal/sim/world"
	"conduitcraft.ai/internal/transport/ws"
)

type serverRuntimeConfig struct {
	DataDir     string
	EnableAdmin bool
	EnablePprof bool
}

// buildRuntimes creates one world per WorldSpec with its JSONL logs under
// <data>/worlds/<id>. The returned closer flushes and closes the logs.
func buildRuntimes(rtCfg serverRuntimeConfig, cfg multiworld.Config, tune tuning.Tuning, cats *catalogs.Catalogs, idx runtimeIndex, m *metrics.Collector) (map[string]*multiworld.Runtime, func(), error) {
	runtimes := map[string]*multiworld.Runtime{}
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	for _, spec := range cfg.Worlds {
		worldDir := filepath.Join(rtCfg.DataDir, "worlds", spec.ID)
		if err := os.MkdirAll(worldDir, 0o755); err != nil {
			closeAll()
			return nil, nil, err
		}
		auditLog := persistlog.NewAuditLogger(worldDir)
		recalcLog := persistlog.NewRecalcLogger(worldDir)
		closers = append(closers, auditLog.Close, recalcLog.Close)

		opts := world.Options{
			Logger:       log.New(os.Stdout, "[world "+spec.ID+"] ", log.LstdFlags|log.Lmicroseconds),
			AuditLogger:  persistlog.AuditTee{auditLog, idx},
			RecalcLogger: persistlog.RecalcTee{recalcLog, idx},
		}
		if m != nil {
			opts.Metrics = m
		}
		w, err := world.New(spec.WorldConfig(tune), cats, opts)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		runtimes[spec.ID] = &multiworld.Runtime{Spec: spec, World: w}
	}
	return runtimes, closeAll, nil
}

func newMux(rtCfg serverRuntimeConfig, mgr *multiworld.Manager, idx runtimeIndex, m *metrics.Collector, wsOpts ws.Options, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}
	if rtCfg.EnableAdmin {
		api := &adminAPI{mgr: mgr, idx: idx}
		mux.HandleFunc("GET /admin/v1/worlds", api.loopbackOnly(api.worlds))
		mux.HandleFunc("GET /admin/v1/worlds/{id}/state", api.loopbackOnly(api.state))
		mux.HandleFunc("GET /admin/v1/worlds/{id}/audits", api.loopbackOnly(api.audits))
		mux.HandleFunc("POST /admin/v1/worlds/{id}/commands", api.loopbackOnly(api.command))
		mux.HandleFunc("GET /admin/v1/index/stats", api.loopbackOnly(api.indexStats))
	} else {
		logger.Printf("admin endpoints disabled (CC_ENABLE_ADMIN_HTTP=false)")
	}
	if rtCfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(mgr, wsOpts, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)).Handler())
	return mux
}

type adminAPI struct {
	mgr *multiworld.Manager
	idx runtimeIndex
}

func (a *adminAPI) loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

type worldSummary struct {
	protocol.WorldRef
	Tick uint64 `json:"tick"`
}

func (a *adminAPI) worlds(rw http.ResponseWriter, r *http.Request) {
	manifest := a.mgr.Manifest()
	out := struct {
		DefaultWorldID string         `json:"default_world_id"`
		Worlds         []worldSummary `json:"worlds"`
	}{DefaultWorldID: a.mgr.DefaultWorldID(), Worlds: make([]worldSummary, 0, len(manifest))}
	for _, ref := range manifest {
		s := worldSummary{WorldRef: ref}
		if rt := a.mgr.Runtime(ref.WorldID); rt != nil {
			s.Tick = rt.World.CurrentTick()
		}
		out.Worlds = append(out.Worlds, s)
	}
	writeJSON(rw, http.StatusOK, out)
}

func (a *adminAPI) state(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	st, err := a.mgr.State(ctx, r.PathValue("id"))
	if err != nil {
		a.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, st)
}

func (a *adminAPI) audits(rw http.ResponseWriter, r *http.Request) {
	if a.idx == nil {
		http.Error(rw, "index disabled", http.StatusServiceUnavailable)
		return
	}
	worldID := r.PathValue("id")
	if a.mgr.Runtime(worldID) == nil {
		http.Error(rw, "world not found", http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	var pos [3]int
	for i, k := range []string{"x", "y", "z"} {
		n, err := strconv.Atoi(q.Get(k))
		if err != nil {
			http.Error(rw, "bad "+k, http.StatusBadRequest)
			return
		}
		pos[i] = n
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	entries, err := a.idx.AuditsAt(ctx, worldID, pos, limit)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []world.AuditEntry{}
	}
	writeJSON(rw, http.StatusOK, entries)
}

func (a *adminAPI) command(rw http.ResponseWriter, r *http.Request) {
	var body struct {
		Actor string `json:"actor"`
		Line  string `json:"line"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 4096)).Decode(&body); err != nil || strings.TrimSpace(body.Line) == "" {
		http.Error(rw, "bad request", http.StatusBadRequest)
		return
	}
	if body.Actor == "" {
		body.Actor = "admin"
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	res, err := a.mgr.Submit(ctx, r.PathValue("id"), world.Command{Actor: body.Actor, Line: body.Line})
	if err != nil {
		a.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"ok":    res.OK,
		"code":  res.Code,
		"lines": res.Lines,
		"tick":  res.Tick,
	})
}

func (a *adminAPI) indexStats(rw http.ResponseWriter, r *http.Request) {
	if a.idx == nil {
		http.Error(rw, "index disabled", http.StatusServiceUnavailable)
		return
	}
	writeJSON(rw, http.StatusOK, a.idx.Stats())
}

func (a *adminAPI) fail(rw http.ResponseWriter, err error) {
	if errors.Is(err, multiworld.ErrWorldNotFound) {
		http.Error(rw, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(rw, err.Error(), http.StatusServiceUnavailable)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
