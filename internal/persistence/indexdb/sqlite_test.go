package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"conduitcraft.ai/internal/sim/catalogs"
	"conduitcraft.ai/internal/sim/tuning"
	"conduitcraft.ai/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqAudit}

	_ = s.WriteAudit(world.AuditEntry{Tick: 2})
	_ = s.WriteRecalc(world.RecalcEntry{Tick: 2})

	st := s.Stats()
	if st.DropAuditTotal != 1 || st.DropRecalcTotal != 1 {
		t.Fatalf("drops: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_AuditsAndRecalcs(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "world.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	pos := [3]int{4, 64, -2}
	_ = idx.WriteAudit(world.AuditEntry{Tick: 5, WorldID: "A", Actor: "op", Action: world.AuditPlace, Pos: pos, Block: "CONDUIT_WIRE"})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 5, WorldID: "A", Actor: "op", Action: world.AuditOverride, Pos: pos, From: 0, To: 9})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 7, WorldID: "A", Actor: "op", Action: world.AuditBreak, Pos: pos})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 5, WorldID: "B", Actor: "op", Action: world.AuditPlace, Pos: pos})
	_ = idx.WriteRecalc(world.RecalcEntry{Tick: 5, WorldID: "A", NetworkID: 1, Reason: "PLACE", Members: 1})
	_ = idx.WriteRecalc(world.RecalcEntry{Tick: 5, WorldID: "A", NetworkID: 1, Reason: "OVERRIDE", Members: 1})
	_ = idx.WriteRecalc(world.RecalcEntry{Tick: 6, WorldID: "A", NetworkID: 1, Reason: "PLACE", Members: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	got, err := idx.AuditsAt(ctx, "A", pos, 10)
	if err != nil {
		t.Fatalf("audits: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("audits at pos: got %d want 3", len(got))
	}
	if got[0].Action != world.AuditBreak || got[1].Action != world.AuditOverride || got[2].Action != world.AuditPlace {
		t.Fatalf("order: %+v", got)
	}
	if got[1].To != 9 {
		t.Fatalf("override to: %+v", got[1])
	}

	counts, err := idx.RecalcCounts(ctx, "A")
	if err != nil {
		t.Fatalf("recalc counts: %v", err)
	}
	if counts["PLACE"] != 2 || counts["OVERRIDE"] != 1 {
		t.Fatalf("counts: %v", counts)
	}
	if st := idx.Stats(); st.WriteErrTotal != 0 {
		t.Fatalf("write errors: %+v", st)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	if err := idx.UpsertCatalogs("../../../configs", cats, tuning.Defaults()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ctx := context.Background()
	d, err := idx.CatalogDigest(ctx, "blocks_defs")
	if err != nil || d != cats.Blocks.DefsDigest {
		t.Fatalf("blocks_defs digest: %q %v", d, err)
	}
	d, err = idx.CatalogDigest(ctx, "blocks_palette")
	if err != nil || d != cats.Blocks.PaletteDigest {
		t.Fatalf("palette digest: %q %v", d, err)
	}
	if d, err := idx.CatalogDigest(ctx, "tuning"); err != nil || len(d) != 64 {
		t.Fatalf("tuning digest: %q %v", d, err)
	}
}

func TestSQLiteIndex_WritesAfterCloseAreIgnored(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.WriteAudit(world.AuditEntry{Tick: 1}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	if err := idx.Flush(context.Background()); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
}
