package network

import (
	"errors"
	"fmt"

	"conduitcraft.ai/internal/sim/conduit/connectivity"
	"conduitcraft.ai/internal/sim/conduit/model"
)

type Violation struct {
	Pos     model.Vec3i
	Message string
}

func (v Violation) String() string { return fmt.Sprintf("%s: %s", v.Pos, v.Message) }

// Violations checks the index against the networks and the world. An empty
// result means every indexed block belongs to exactly one network, live edges
// never cross networks and all levels are in range.
func (m *Manager) Violations() []Violation {
	var out []Violation
	owner := map[model.Vec3i]NetworkID{}
	for _, id := range m.NetworkIDs() {
		net := m.networks[id]
		if net.ID != id {
			out = append(out, Violation{Message: fmt.Sprintf("network %d stored under id %d", net.ID, id)})
		}
		for _, p := range net.Graph.Members() {
			if prev, dup := owner[p]; dup {
				out = append(out, Violation{Pos: p, Message: fmt.Sprintf("member of networks %d and %d", prev, id)})
				continue
			}
			owner[p] = id
			if got := m.networksByBlock[p]; got != id {
				out = append(out, Violation{Pos: p, Message: fmt.Sprintf("member of network %d but indexed to %d", id, got)})
			}
		}
	}
	for _, p := range model.SortedPositions(m.networksByBlock) {
		id := m.networksByBlock[p]
		if owner[p] != id {
			out = append(out, Violation{Pos: p, Message: fmt.Sprintf("indexed to %d but not a member", id)})
		}
		st, ok := m.store.ConduitAt(p)
		if !ok {
			out = append(out, Violation{Pos: p, Message: "indexed but not a loaded conduit"})
			continue
		}
		if st.Power < 0 || st.Power > st.MaxPower {
			out = append(out, Violation{Pos: p, Message: fmt.Sprintf("power %d outside [0, %d]", st.Power, st.MaxPower)})
		}
		for _, np := range connectivity.Neighbors(m.store, p, st.Mask) {
			if !connectivity.Connected(m.store, np, p) {
				out = append(out, Violation{Pos: p, Message: fmt.Sprintf("asymmetric connection to %s", np)})
			}
			if nid := m.networksByBlock[np]; nid != id {
				out = append(out, Violation{Pos: p, Message: fmt.Sprintf("connected to %s in network %d, own network %d", np, nid, id)})
			}
		}
	}
	return out
}

// CheckInvariants returns the violations joined into one error, or nil.
func (m *Manager) CheckInvariants() error {
	vs := m.Violations()
	if len(vs) == 0 {
		return nil
	}
	errs := make([]error, 0, len(vs))
	for _, v := range vs {
		errs = append(errs, errors.New(v.String()))
	}
	return errors.Join(errs...)
}

// Repair rebuilds every network touched by a violation.
func (m *Manager) Repair(vs []Violation) []Report {
	var out []Report
	done := map[model.Vec3i]bool{}
	for _, v := range vs {
		if done[v.Pos] {
			continue
		}
		done[v.Pos] = true
		rs, _ := m.RecalculateNetworkNow(v.Pos)
		for _, r := range rs {
			for _, p := range m.Members(r.NetworkID) {
				done[p] = true
			}
		}
		out = append(out, rs...)
	}
	return out
}
