package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"conduitcraft.ai/internal/persistence/indexdb"
	persistlog "conduitcraft.ai/internal/persistence/log"
	"conduitcraft.ai/internal/sim/world"
)

// logCmd prints audit entries straight from a world's JSONL files.
// It does not need a running server.
func logCmd(args []string) {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "OVERWORLD", "world id")
	pos := fs.String("pos", "", "only entries at x,y,z (optional)")
	action := fs.String("action", "", "only this audit action (optional)")
	sinceTick := fs.Uint64("since_tick", 0, "only entries at or after this tick")
	_ = fs.Parse(args)

	var (
		filter  [3]int
		withPos bool
	)
	if strings.TrimSpace(*pos) != "" {
		p, err := parseVec3(*pos)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -pos:", err)
			os.Exit(2)
		}
		filter, withPos = p, true
	}
	act := strings.ToUpper(strings.TrimSpace(*action))

	enc := json.NewEncoder(os.Stdout)
	err := persistlog.ReadAudits(filepath.Join(*dataDir, "worlds", *worldID), func(e world.AuditEntry) error {
		if e.Tick < *sinceTick {
			return nil
		}
		if withPos && e.Pos != filter {
			return nil
		}
		if act != "" && e.Action != act {
			return nil
		}
		return enc.Encode(e)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
}

// recalcsCmd summarizes recalculations per reason, from the sqlite index
// when present and from the JSONL files otherwise.
func recalcsCmd(args []string) {
	fs := flag.NewFlagSet("recalcs", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "OVERWORLD", "world id")
	dbPath := fs.String("db", "", "sqlite index path (default: <data>/index/conduit.sqlite)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "conduit.sqlite")
	}

	var counts map[string]int
	if _, err := os.Stat(path); err == nil {
		idx, err := indexdb.OpenSQLite(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open index:", err)
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		counts, err = idx.RecalcCounts(ctx, *worldID)
		cancel()
		_ = idx.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
	} else {
		counts = map[string]int{}
		err := persistlog.ReadRecalcs(filepath.Join(*dataDir, "worlds", *worldID), func(e world.RecalcEntry) error {
			counts[e.Reason]++
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read recalcs:", err)
			os.Exit(1)
		}
	}

	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Printf("%-14s %d\n", r, counts[r])
	}
}
