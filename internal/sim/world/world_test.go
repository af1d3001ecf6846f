package world

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"conduitcraft.ai/internal/protocol"
	"conduitcraft.ai/internal/sim/catalogs"
	"conduitcraft.ai/internal/sim/conduit/model"
	"conduitcraft.ai/internal/sim/world/terrain/store"
)

type memAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (m *memAudit) WriteAudit(e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type memRecalc struct{ entries []RecalcEntry }

func (m *memRecalc) WriteRecalc(e RecalcEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func testCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func newTestWorld(t *testing.T, cfg WorldConfig, opts Options) *World {
	t.Helper()
	if cfg.ID == "" {
		cfg.ID = "TEST"
	}
	if cfg.Bounds == (store.Bounds{}) {
		cfg.Bounds = store.Bounds{MinY: -16, MaxY: 64}
	}
	w, err := New(cfg, testCatalogs(t), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func cmd(format string, args ...any) Command {
	return Command{Actor: "tester", Line: fmt.Sprintf(format, args...)}
}

func TestStepOnceRunsCommandsInOrder(t *testing.T) {
	audit := &memAudit{}
	w := newTestWorld(t, WorldConfig{}, Options{AuditLogger: audit})

	tick, res := w.StepOnce(
		cmd("/conduit place 0 0 0 POWER_CELL"),
		cmd("/conduit place 1 0 0 CONDUIT_WIRE"),
		cmd("/conduit place 2 0 0 CONDUIT_WIRE"),
		cmd("/conduit place 3 0 0 LAMP"),
		cmd("/conduit power 3 0 0"),
	)
	if tick != 0 || len(res) != 5 {
		t.Fatalf("tick=%d results=%d", tick, len(res))
	}
	for i, r := range res {
		if !r.OK {
			t.Fatalf("res[%d]=%+v", i, r)
		}
	}
	if got, want := res[4].Lines[0], "Conduit at (3, 0, 0): power=12/15 (SINK), connections=6, decay=1"; got != want {
		t.Fatalf("power line=%q, want %q", got, want)
	}
	if w.CurrentTick() != 1 {
		t.Fatalf("tick=%d, want 1", w.CurrentTick())
	}
	if err := w.DebugCheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	acts := audit.actions()
	if len(acts) != 4 || acts[0] != AuditPlace {
		t.Fatalf("audit=%v", acts)
	}
	if audit.entries[0].Actor != "tester" || audit.entries[0].WorldID != "TEST" {
		t.Fatalf("audit entry=%+v", audit.entries[0])
	}
}

func TestBreakSplitsAndSourceDrives(t *testing.T) {
	rec := &memRecalc{}
	w := newTestWorld(t, WorldConfig{}, Options{RecalcLogger: rec})
	w.StepOnce(
		cmd("/conduit place 0 0 0 LEVER"),
		cmd("/conduit place 1 0 0 CONDUIT_WIRE"),
		cmd("/conduit place 2 0 0 CONDUIT_WIRE"),
	)
	if p, _ := w.DebugPowerAt(model.Vec3i{X: 2}); p != 0 {
		t.Fatalf("lever off: power=%d", p)
	}
	_, res := w.StepOnce(cmd("/conduit source 0 0 0 10"))
	if !res[0].OK {
		t.Fatalf("source=%+v", res[0])
	}
	if p, _ := w.DebugPowerAt(model.Vec3i{X: 2}); p != 8 {
		t.Fatalf("power=%d, want 8", p)
	}
	_, res = w.StepOnce(cmd("/conduit break 1 0 0"), cmd("/conduit stats"))
	if !res[0].OK {
		t.Fatalf("break=%+v", res[0])
	}
	if p, _ := w.DebugPowerAt(model.Vec3i{X: 2}); p != 0 {
		t.Fatalf("after break power=%d, want 0", p)
	}
	if got := res[1].Lines[0]; got != "tick=2 networks=2 blocks=2 last_id=2 chunks=1" {
		t.Fatalf("stats=%q", got)
	}
	if len(rec.entries) == 0 || rec.entries[len(rec.entries)-1].Reason != "REMOVE" {
		t.Fatalf("recalc entries=%+v", rec.entries)
	}
}

func TestOccupiedAndUnloadedPlacement(t *testing.T) {
	w := newTestWorld(t, WorldConfig{PreloadChunkRadius: 0}, Options{})
	_, res := w.StepOnce(
		cmd("/conduit place 0 0 0 LAMP"),
		cmd("/conduit place 0 0 0 LAMP"),
		cmd("/conduit place 40 0 0 LAMP"),
		cmd("/conduit place 0 99 0 LAMP"),
		cmd("/conduit place 1 0 0 NOT_A_BLOCK"),
	)
	wantCodes := []string{"", protocol.ErrConflict, protocol.ErrNotLoaded, protocol.ErrInvalidTarget, protocol.ErrBadRequest}
	for i, want := range wantCodes {
		if res[i].Code != want {
			t.Fatalf("res[%d].Code=%q, want %q (%v)", i, res[i].Code, want, res[i].Lines)
		}
	}
}

func TestChunkUnloadAndReload(t *testing.T) {
	w := newTestWorld(t, WorldConfig{PreloadChunkRadius: 1}, Options{})
	var cmds []Command
	cmds = append(cmds, cmd("/conduit place 28 0 0 POWER_CELL"))
	for x := 29; x <= 36; x++ {
		cmds = append(cmds, cmd("/conduit place %d 0 0 CONDUIT_WIRE", x))
	}
	w.StepOnce(cmds...)
	if p, _ := w.DebugPowerAt(model.Vec3i{X: 36}); p != 7 {
		t.Fatalf("power=%d, want 7", p)
	}
	_, res := w.StepOnce(cmd("/conduit unload 0 0"))
	if !res[0].OK || res[0].Lines[0] != "Unloaded chunk [0, 0] with 4 conduits" {
		t.Fatalf("unload=%+v", res[0])
	}
	if p, _ := w.DebugPowerAt(model.Vec3i{X: 36}); p != 0 {
		t.Fatalf("after unload power=%d, want 0", p)
	}
	if err := w.DebugCheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	_, res = w.StepOnce(cmd("/conduit load 0 0"))
	if !res[0].OK {
		t.Fatalf("load=%+v", res[0])
	}
	if p, _ := w.DebugPowerAt(model.Vec3i{X: 36}); p != 7 {
		t.Fatalf("after reload power=%d, want 7", p)
	}
}

func TestInvariantCheckRepairsMissedEdits(t *testing.T) {
	audit := &memAudit{}
	w := newTestWorld(t, WorldConfig{InvariantCheckEveryTicks: 2}, Options{AuditLogger: audit})
	w.StepOnce(cmd("/conduit place 0 0 0 POWER_CELL"), cmd("/conduit place 1 0 0 CONDUIT_WIRE"))

	// Missed removal: the wire vanishes from storage but stays indexed.
	w.DebugRemoveConduit(model.Vec3i{X: 1})
	if err := w.DebugCheckInvariants(); err == nil {
		t.Fatalf("expected violation")
	}
	w.StepOnce() // tick 1: no check
	if err := w.DebugCheckInvariants(); err == nil {
		t.Fatalf("check ran early")
	}
	w.StepOnce() // tick 2: check + repair
	if err := w.DebugCheckInvariants(); err != nil {
		t.Fatalf("not repaired: %v", err)
	}
	found := false
	for _, a := range audit.actions() {
		if a == AuditRepair {
			found = true
		}
	}
	if !found {
		t.Fatalf("no repair audit: %v", audit.actions())
	}
}

func TestRunServesConcurrentSubmitters(t *testing.T) {
	w := newTestWorld(t, WorldConfig{TickRateHz: 200}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	out := make(chan []byte, 64)
	if err := w.Subscribe(ctx, "obs1", out); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rctx, rcancel := context.WithTimeout(ctx, 5*time.Second)
			defer rcancel()
			r, err := w.Submit(rctx, cmd("/conduit place %d 5 %d CONDUIT_WIRE", i, i))
			if err != nil {
				errs <- err
				return
			}
			if !r.OK {
				errs <- fmt.Errorf("place %d: %v", i, r.Lines)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	sctx, scancel := context.WithTimeout(ctx, 5*time.Second)
	defer scancel()
	st, err := w.RequestState(sctx)
	if err != nil {
		t.Fatalf("RequestState: %v", err)
	}
	if st.Blocks != 8 || len(st.Networks) != 8 || st.Observers != 1 {
		t.Fatalf("state=%+v", st)
	}

	select {
	case b := <-out:
		var m protocol.PowerMsg
		if err := json.Unmarshal(b, &m); err != nil || m.Type != protocol.TypePower || m.WorldID != "TEST" {
			t.Fatalf("pushed=%s err=%v", b, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no POWER push")
	}

	w.Stop()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cats := testCatalogs(t)
	if _, err := New(WorldConfig{}, cats, Options{}); err == nil {
		t.Fatalf("expected empty id error")
	}
	if _, err := New(WorldConfig{ID: "X", Bounds: store.Bounds{MinY: 5, MaxY: 0}}, cats, Options{}); err == nil {
		t.Fatalf("expected bounds error")
	}
	if _, err := New(WorldConfig{ID: "X"}, nil, Options{}); err == nil {
		t.Fatalf("expected nil catalogs error")
	}
}

func TestRunReleasesNetworksOnExit(t *testing.T) {
	w := newTestWorld(t, WorldConfig{TickRateHz: 200}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	out := make(chan []byte, 64)
	if err := w.Subscribe(ctx, "obs1", out); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	for i := 0; i < 3; i++ {
		r, err := w.Submit(ctx, cmd("/conduit place %d 5 0 CONDUIT_WIRE", i*2))
		if err != nil || !r.OK {
			t.Fatalf("place %d: %v %v", i, err, r.Lines)
		}
	}
	st, err := w.RequestState(ctx)
	if err != nil || len(st.Networks) != 3 {
		t.Fatalf("before stop: %+v err=%v", st, err)
	}
	lastID := st.LastID

	w.Stop()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	after := w.state()
	if after.Blocks != 0 || len(after.Networks) != 0 || after.Observers != 0 {
		t.Fatalf("after stop: %+v", after)
	}
	if after.LastID != lastID {
		t.Fatalf("last id %d, want %d", after.LastID, lastID)
	}
	if n := w.conduits.Stats().Networks; n != 0 {
		t.Fatalf("networks=%d", n)
	}
	// A late unsubscribe must not block once the loop is gone.
	w.Unsubscribe("obs1")
}

func TestUnsubscribeWithFullQueueIsReaped(t *testing.T) {
	w := newTestWorld(t, WorldConfig{}, Options{})
	w.unsubscribeWait = 10 * time.Millisecond

	out := make(chan []byte, 4)
	w.handleSubscribe(subscribeReq{ID: "obs", Out: out})
	for len(w.unsubscribe) < cap(w.unsubscribe) {
		w.unsubscribe <- "filler"
	}

	start := time.Now()
	w.Unsubscribe("obs")
	if time.Since(start) > time.Second {
		t.Fatalf("Unsubscribe blocked for %v", time.Since(start))
	}
	if len(w.observers) != 1 {
		t.Fatalf("observer removed before broadcast")
	}

	w.broadcast(protocol.RetireMsg{Type: protocol.TypeRetire, NetworkID: 1})
	if len(w.observers) != 0 {
		t.Fatalf("observers=%d after broadcast", len(w.observers))
	}
	select {
	case b := <-out:
		t.Fatalf("unsubscribed observer got %s", b)
	default:
	}
}
