package world

import (
	"strings"

	"conduitcraft.ai/internal/sim/world/feature/admin/debug"
)

func (w *World) stepInternal(reqs []commandReq) {
	nowTick := w.tick.Load()

	// Commands apply in arrival order; each one's recalculations complete before the next starts.
	for _, req := range reqs {
		r := w.execute(req.Cmd)
		r.Tick = nowTick
		if req.Resp != nil {
			select {
			case req.Resp <- r:
			default:
				// Requester gave up; don't block the sim loop.
			}
		}
	}

	if every := w.cfg.InvariantCheckEveryTicks; every > 0 && nowTick%uint64(every) == 0 {
		w.checkInvariants(nowTick)
	}
	w.publishStats()
	w.tick.Add(1)
}

func (w *World) execute(cmd Command) CommandResult {
	w.curActor = cmd.Actor
	defer func() { w.curActor = "" }()

	res := debug.Execute(debugEnv{w: w}, cmd.Line)
	if w.metrics != nil {
		name := "help"
		if fs := debug.Fields(cmd.Line); len(fs) > 0 {
			name = strings.ToLower(fs[0])
		}
		w.metrics.ObserveCommand(w.cfg.ID, commandLabel(name), res.OK)
	}
	return CommandResult{OK: res.OK, Code: res.Code, Lines: res.Lines}
}

var commandLabels = map[string]bool{
	"power": true, "network": true, "recalc": true, "set": true, "place": true,
	"break": true, "source": true, "load": true, "unload": true, "stats": true, "help": true,
}

// commandLabel bounds metric label cardinality.
func commandLabel(name string) string {
	if commandLabels[name] {
		return name
	}
	return "unknown"
}
