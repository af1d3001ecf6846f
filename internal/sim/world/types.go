package world

import (
	"time"

	"conduitcraft.ai/internal/sim/conduit/network"
)

// Audit actions.
const (
	AuditPlace    = "PLACE_CONDUIT"
	AuditBreak    = "BREAK_CONDUIT"
	AuditSource   = "SET_SOURCE"
	AuditOverride = "OVERRIDE_POWER"
	AuditRecalc   = "RECALC"
	AuditLoad     = "LOAD_CHUNK"
	AuditUnload   = "UNLOAD_CHUNK"
	AuditRepair   = "REPAIR"
)

type AuditEntry struct {
	Tick    uint64 `json:"tick"`
	WorldID string `json:"world_id"`
	Actor   string `json:"actor"`
	Action  string `json:"action"`
	Pos     [3]int `json:"pos"`
	Block   string `json:"block,omitempty"`
	From    int    `json:"from"`
	To      int    `json:"to"`
	Reason  string `json:"reason,omitempty"`
}

// RecalcEntry is the persisted form of one network recalculation.
type RecalcEntry struct {
	Tick       uint64 `json:"tick"`
	WorldID    string `json:"world_id"`
	NetworkID  uint64 `json:"network_id"`
	Reason     string `json:"reason"`
	Members    int    `json:"members"`
	Sources    int    `json:"sources"`
	Changed    int    `json:"changed"`
	OverBudget bool   `json:"over_budget,omitempty"`
	Micros     int64  `json:"micros"`
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type RecalcLogger interface {
	WriteRecalc(entry RecalcEntry) error
}

type Metrics interface {
	ObserveRecalc(worldID string, reason string, changed int, elapsed time.Duration)
	ObserveRetire(worldID string, reason string)
	ObserveCommand(worldID string, name string, ok bool)
	ObserveViolations(worldID string, n int)
	SetNetworkStats(worldID string, networks, blocks, chunks int)
}

// Command is one /conduit line issued by actor.
type Command struct {
	Actor string
	Line  string
}

type CommandResult struct {
	Tick  uint64
	OK    bool
	Code  string
	Lines []string
}

// State is a read-only view for admin endpoints.
type State struct {
	WorldID      string              `json:"world_id"`
	Tick         uint64              `json:"tick"`
	Networks     []network.DebugInfo `json:"networks"`
	Blocks       int                 `json:"blocks"`
	LastID       uint64              `json:"last_network_id"`
	LoadedChunks [][2]int            `json:"loaded_chunks"`
	Observers    int                 `json:"observers"`
}
