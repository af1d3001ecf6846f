package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"conduitcraft.ai/internal/persistence/indexdb"
	"conduitcraft.ai/internal/sim/catalogs"
	"conduitcraft.ai/internal/sim/tuning"
	"conduitcraft.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.AuditLogger
	world.RecalcLogger
	Close() error
	Flush(ctx context.Context) error
	Stats() indexdb.Stats
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	AuditsAt(ctx context.Context, worldID string, pos [3]int, limit int) ([]world.AuditEntry, error)
}

// openRuntimeIndex opens the shared read-model index under <data>/index.
// A nil index (and nil error) means indexing is off.
func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("CC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "conduit.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported CC_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
