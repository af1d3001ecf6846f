package network

import (
	"fmt"

	"conduitcraft.ai/internal/sim/conduit/graph"
	"conduitcraft.ai/internal/sim/conduit/model"
)

// DebugInfo is a read-only snapshot of the network owning a position.
// NetworkID is zero when the conduit has not been indexed yet.
type DebugInfo struct {
	NetworkID   NetworkID `json:"network_id"`
	MemberCount int       `json:"members"`
	SourceCount int       `json:"sources"`
	MinLevel    int       `json:"min_level"`
	MaxLevel    int       `json:"max_level"`
}

func (d DebugInfo) String() string {
	return fmt.Sprintf("NetworkDebugInfo{id=%d, members=%d, sources=%d, power=[%d..%d]}",
		d.NetworkID, d.MemberCount, d.SourceCount, d.MinLevel, d.MaxLevel)
}

// NetworkDebugInfo reports on the network owning pos without mutating anything.
func (m *Manager) NetworkDebugInfo(pos model.Vec3i) (DebugInfo, bool) {
	if _, ok := m.store.ConduitAt(pos); !ok {
		return DebugInfo{}, false
	}
	if id, ok := m.networksByBlock[pos]; ok {
		if net := m.networks[id]; net != nil {
			info := m.describe(net.Graph)
			info.NetworkID = id
			return info, true
		}
	}
	g, ok := graph.Discover(m.store, pos, graph.Options{})
	if !ok {
		return DebugInfo{}, false
	}
	return m.describe(g), true
}

func (m *Manager) describe(g graph.Graph) DebugInfo {
	info := DebugInfo{MemberCount: g.Len(), SourceCount: len(g.Sources)}
	first := true
	for p := range g.Nodes {
		st, ok := m.store.ConduitAt(p)
		if !ok {
			continue
		}
		if first || st.Power < info.MinLevel {
			info.MinLevel = st.Power
		}
		if first || st.Power > info.MaxLevel {
			info.MaxLevel = st.Power
		}
		first = false
	}
	return info
}

// Summaries describes every live network in id order.
func (m *Manager) Summaries() []DebugInfo {
	ids := m.NetworkIDs()
	out := make([]DebugInfo, 0, len(ids))
	for _, id := range ids {
		info := m.describe(m.networks[id].Graph)
		info.NetworkID = id
		out = append(out, info)
	}
	return out
}
