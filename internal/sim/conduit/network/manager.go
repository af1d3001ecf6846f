// Package network maintains conduit networks for one loaded world.
//
// Manager is not safe for concurrent use. The owning world serializes every call
// onto its tick loop.
package network

import (
	"log"
	"time"

	"conduitcraft.ai/internal/sim/conduit/connectivity"
	"conduitcraft.ai/internal/sim/conduit/graph"
	"conduitcraft.ai/internal/sim/conduit/model"
)

// NetworkID identifies a connected component. IDs are allocated monotonically
// per manager and never reused after retirement. Zero means "no network".
type NetworkID uint64

// Storage is the world block storage the engine reads from and writes levels back to.
type Storage interface {
	connectivity.Lookup
	SetConduitPowerLevel(pos model.Vec3i, level int) bool
}

type Reason string

const (
	ReasonPlace       Reason = "PLACE"
	ReasonRemove      Reason = "REMOVE"
	ReasonSource      Reason = "SOURCE"
	ReasonOverride    Reason = "OVERRIDE"
	ReasonForced      Reason = "FORCED"
	ReasonChunkLoad   Reason = "CHUNK_LOAD"
	ReasonChunkUnload Reason = "CHUNK_UNLOAD"
)

type Change struct {
	Pos  model.Vec3i
	From int
	To   int
}

// Report describes one completed recalculation.
type Report struct {
	NetworkID  NetworkID
	Reason     Reason
	Members    int
	Sources    int
	Changes    []Change
	OverBudget bool
	Elapsed    time.Duration
}

// Retirement records a network id leaving service. Into is the surviving id on merge, zero otherwise.
type Retirement struct {
	NetworkID NetworkID
	Reason    Reason
	Into      NetworkID
}

type Options struct {
	// MaxNetworkSize is a soft capacity; larger networks are still computed but logged.
	MaxNetworkSize int
	Logger         *log.Logger

	OnRecalc func(Report)
	OnRetire func(Retirement)
}

type Network struct {
	ID    NetworkID
	Graph graph.Graph
}

type Manager struct {
	store Storage
	opts  Options

	networksByBlock map[model.Vec3i]NetworkID
	networks        map[NetworkID]*Network
	lastID          NetworkID
}

func New(store Storage, opts Options) *Manager {
	return &Manager{
		store:           store,
		opts:            opts,
		networksByBlock: map[model.Vec3i]NetworkID{},
		networks:        map[NetworkID]*Network{},
	}
}

// PowerLevelAt reads the cached level of a conduit. It never recomputes.
func (m *Manager) PowerLevelAt(pos model.Vec3i) (int, bool) {
	st, ok := m.store.ConduitAt(pos)
	if !ok {
		return 0, false
	}
	return st.Power, true
}

// NetworkOf returns the id of the network that owns pos.
func (m *Manager) NetworkOf(pos model.Vec3i) (NetworkID, bool) {
	id, ok := m.networksByBlock[pos]
	return id, ok
}

// Members returns the sorted members of network id.
func (m *Manager) Members(id NetworkID) []model.Vec3i {
	net := m.networks[id]
	if net == nil {
		return nil
	}
	return net.Graph.Members()
}

type Stats struct {
	Networks int
	Blocks   int
	LastID   NetworkID
}

func (m *Manager) Stats() Stats {
	return Stats{
		Networks: len(m.networks),
		Blocks:   len(m.networksByBlock),
		LastID:   m.lastID,
	}
}

// NetworkIDs returns live ids in ascending order.
func (m *Manager) NetworkIDs() []NetworkID {
	out := make([]NetworkID, 0, len(m.networks))
	for id := range m.networks {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

// Reset drops every network and index entry. The id allocator is kept, so
// ids handed out before a reset are never reused.
func (m *Manager) Reset() {
	m.networksByBlock = map[model.Vec3i]NetworkID{}
	m.networks = map[NetworkID]*Network{}
}

func (m *Manager) logf(format string, args ...any) {
	if m.opts.Logger != nil {
		m.opts.Logger.Printf(format, args...)
	}
}
