package world

import (
	"encoding/json"

	"conduitcraft.ai/internal/protocol"
	"conduitcraft.ai/internal/sim/conduit/network"
)

type observer struct {
	id  string
	out chan []byte
}

func (w *World) handleSubscribe(req subscribeReq) {
	if req.ID != "" && req.Out != nil {
		w.observers[req.ID] = &observer{id: req.ID, out: req.Out}
	}
	if req.Resp != nil {
		req.Resp <- true
	}
}

func (w *World) handleUnsubscribe(id string) {
	delete(w.observers, id)
}

func (w *World) reapObservers() {
	w.lateMu.Lock()
	defer w.lateMu.Unlock()
	for id := range w.lateUnsub {
		delete(w.observers, id)
		delete(w.lateUnsub, id)
	}
}

func (w *World) broadcast(msg any) {
	w.reapObservers()
	if len(w.observers) == 0 {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		w.logger.Printf("encode %T: %v", msg, err)
		return
	}
	for _, o := range w.observers {
		select {
		case o.out <- b:
		default:
			// Slow observer; drop rather than stall the loop.
		}
	}
}

// onRecalc runs inside the manager, on the world loop goroutine.
func (w *World) onRecalc(r network.Report) {
	tick := w.tick.Load()
	if w.metrics != nil {
		w.metrics.ObserveRecalc(w.cfg.ID, string(r.Reason), len(r.Changes), r.Elapsed)
	}
	if w.recalcLogger != nil {
		_ = w.recalcLogger.WriteRecalc(RecalcEntry{
			Tick:       tick,
			WorldID:    w.cfg.ID,
			NetworkID:  uint64(r.NetworkID),
			Reason:     string(r.Reason),
			Members:    r.Members,
			Sources:    r.Sources,
			Changed:    len(r.Changes),
			OverBudget: r.OverBudget,
			Micros:     r.Elapsed.Microseconds(),
		})
	}
	changes := make([]protocol.PowerChange, 0, len(r.Changes))
	for _, c := range r.Changes {
		changes = append(changes, protocol.PowerChange{Pos: c.Pos.ToArray(), From: c.From, To: c.To})
	}
	w.broadcast(protocol.PowerMsg{
		Type:            protocol.TypePower,
		ProtocolVersion: protocol.Version,
		WorldID:         w.cfg.ID,
		Tick:            tick,
		NetworkID:       uint64(r.NetworkID),
		Reason:          string(r.Reason),
		Members:         r.Members,
		Sources:         r.Sources,
		OverBudget:      r.OverBudget,
		Changes:         changes,
	})
}

func (w *World) onRetire(r network.Retirement) {
	if w.metrics != nil {
		w.metrics.ObserveRetire(w.cfg.ID, string(r.Reason))
	}
	w.broadcast(protocol.RetireMsg{
		Type:            protocol.TypeRetire,
		ProtocolVersion: protocol.Version,
		WorldID:         w.cfg.ID,
		Tick:            w.tick.Load(),
		NetworkID:       uint64(r.NetworkID),
		Reason:          string(r.Reason),
		Into:            uint64(r.Into),
	})
}
