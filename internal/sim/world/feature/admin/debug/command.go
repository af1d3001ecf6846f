// Package debug implements the /conduit operator commands.
package debug

import (
	"fmt"
	"strconv"
	"strings"

	"conduitcraft.ai/internal/protocol"
	"conduitcraft.ai/internal/sim/conduit/model"
	"conduitcraft.ai/internal/sim/conduit/network"
)

// Env is the world surface the commands run against. Implementations are
// called from the world loop goroutine only.
type Env interface {
	ConduitAt(pos model.Vec3i) (model.State, bool)
	NetworkInfo(pos model.Vec3i) (network.DebugInfo, bool)
	Recalculate(pos model.Vec3i) bool
	OverridePower(pos model.Vec3i, level int) (settled int, ok bool)
	SetSource(pos model.Vec3i, level int) (settled int, ok bool)
	Place(pos model.Vec3i, block string, mask *model.Mask) error
	Break(pos model.Vec3i) bool
	LoadChunk(cx, cz int) (conduits int, ok bool)
	UnloadChunk(cx, cz int) (conduits int, ok bool)
	Stats() Stats
}

type Stats struct {
	Networks     int
	Blocks       int
	LastID       uint64
	LoadedChunks int
	Tick         uint64
}

type Result struct {
	OK    bool
	Code  string
	Lines []string
}

func (r Result) Message() string { return strings.Join(r.Lines, "\n") }

func ok(format string, args ...any) Result {
	return Result{OK: true, Lines: []string{fmt.Sprintf(format, args...)}}
}

func fail(code, format string, args ...any) Result {
	return Result{Code: code, Lines: []string{fmt.Sprintf(format, args...)}}
}

var helpLines = []string{
	"Arcane Conduits Debug Commands:",
	"  /conduit power <x> <y> <z> - Get power level",
	"  /conduit network <x> <y> <z> - Get network info",
	"  /conduit recalc <x> <y> <z> - Force recalculate",
	"  /conduit set <x> <y> <z> <power> - Set power (0-15)",
	"  /conduit place <x> <y> <z> <block> [faces] - Place a conduit",
	"  /conduit break <x> <y> <z> - Remove a conduit",
	"  /conduit source <x> <y> <z> <level> - Drive a source",
	"  /conduit load <cx> <cz> - Load a chunk",
	"  /conduit unload <cx> <cz> - Unload a chunk",
	"  /conduit stats - Network statistics",
}

// Fields splits a command line. The leading "/conduit" (or "conduit") is optional.
func Fields(line string) []string {
	fs := strings.Fields(line)
	if len(fs) > 0 && strings.EqualFold(strings.TrimPrefix(fs[0], "/"), "conduit") {
		fs = fs[1:]
	}
	return fs
}

// Execute runs one command line against env.
func Execute(env Env, line string) Result {
	args := Fields(line)
	if len(args) == 0 {
		return Result{OK: true, Lines: append([]string(nil), helpLines...)}
	}
	switch sub := strings.ToLower(args[0]); sub {
	case "power":
		return power(env, args)
	case "network":
		return networkInfo(env, args)
	case "recalc":
		return recalc(env, args)
	case "set":
		return setPower(env, args)
	case "place":
		return place(env, args)
	case "break":
		return breakConduit(env, args)
	case "source":
		return source(env, args)
	case "load":
		return loadChunk(env, args)
	case "unload":
		return unloadChunk(env, args)
	case "stats":
		return stats(env)
	case "help":
		return Result{OK: true, Lines: append([]string(nil), helpLines...)}
	default:
		return fail(protocol.ErrUnknownCmd, "Unknown subcommand: %s. Use /conduit help", sub)
	}
}

func usage(format string) Result {
	return fail(protocol.ErrBadRequest, "Usage: %s", format)
}

func parsePos(args []string, start int) (model.Vec3i, bool) {
	var v [3]int
	for i := range v {
		n, err := strconv.Atoi(args[start+i])
		if err != nil {
			return model.Vec3i{}, false
		}
		v[i] = n
	}
	return model.VecFromArray(v), true
}

func invalidCoords() Result { return fail(protocol.ErrBadRequest, "Invalid coordinates") }

func noConduit(pos model.Vec3i) Result {
	return fail(protocol.ErrInvalidTarget, "No conduit at %s", pos)
}

func power(env Env, args []string) Result {
	if len(args) < 4 {
		return usage("/conduit power <x> <y> <z>")
	}
	pos, okPos := parsePos(args, 1)
	if !okPos {
		return invalidCoords()
	}
	st, found := env.ConduitAt(pos)
	if !found {
		return noConduit(pos)
	}
	return ok("Conduit at %s: power=%d/%d (%s), connections=%d, decay=%d",
		pos, st.Power, st.MaxPower, st.Category, st.Mask.Count(), st.Decay)
}

func networkInfo(env Env, args []string) Result {
	if len(args) < 4 {
		return usage("/conduit network <x> <y> <z>")
	}
	pos, okPos := parsePos(args, 1)
	if !okPos {
		return invalidCoords()
	}
	info, found := env.NetworkInfo(pos)
	if !found {
		return noConduit(pos)
	}
	return ok("Network at %s: %s", pos, info)
}

func recalc(env Env, args []string) Result {
	if len(args) < 4 {
		return usage("/conduit recalc <x> <y> <z>")
	}
	pos, okPos := parsePos(args, 1)
	if !okPos {
		return invalidCoords()
	}
	if !env.Recalculate(pos) {
		return noConduit(pos)
	}
	return ok("Network recalculated at %s", pos)
}

func parseLevel(s string) (int, Result, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fail(protocol.ErrBadRequest, "Invalid power value: %s", s), false
	}
	if n < 0 || n > model.DefaultMaxPower {
		return 0, fail(protocol.ErrBadRequest, "Power must be 0-%d", model.DefaultMaxPower), false
	}
	return n, Result{}, true
}

func setPower(env Env, args []string) Result {
	if len(args) < 5 {
		return usage("/conduit set <x> <y> <z> <power>")
	}
	pos, okPos := parsePos(args, 1)
	if !okPos {
		return invalidCoords()
	}
	level, bad, okLevel := parseLevel(args[4])
	if !okLevel {
		return bad
	}
	settled, found := env.OverridePower(pos, level)
	if !found {
		return noConduit(pos)
	}
	r := ok("Set power to %d at %s", level, pos)
	if settled != level {
		r.Lines = append(r.Lines, fmt.Sprintf("Network settled at %d", settled))
	}
	return r
}

func source(env Env, args []string) Result {
	if len(args) < 5 {
		return usage("/conduit source <x> <y> <z> <level>")
	}
	pos, okPos := parsePos(args, 1)
	if !okPos {
		return invalidCoords()
	}
	level, bad, okLevel := parseLevel(args[4])
	if !okLevel {
		return bad
	}
	settled, found := env.SetSource(pos, level)
	if !found {
		return fail(protocol.ErrInvalidTarget, "No source at %s", pos)
	}
	return ok("Source at %s set to %d", pos, settled)
}

func place(env Env, args []string) Result {
	if len(args) < 5 {
		return usage("/conduit place <x> <y> <z> <block> [faces]")
	}
	pos, okPos := parsePos(args, 1)
	if !okPos {
		return invalidCoords()
	}
	block := strings.ToUpper(args[4])
	var mask *model.Mask
	if len(args) > 5 {
		m, err := ParseFaces(args[5])
		if err != nil {
			return fail(protocol.ErrBadRequest, "Invalid faces: %s", args[5])
		}
		mask = &m
	}
	if err := env.Place(pos, block, mask); err != nil {
		return fail(CodeOf(err), "Cannot place %s at %s: %v", block, pos, err)
	}
	return ok("Placed %s at %s", block, pos)
}

func breakConduit(env Env, args []string) Result {
	if len(args) < 4 {
		return usage("/conduit break <x> <y> <z>")
	}
	pos, okPos := parsePos(args, 1)
	if !okPos {
		return invalidCoords()
	}
	if !env.Break(pos) {
		return noConduit(pos)
	}
	return ok("Removed conduit at %s", pos)
}

func parseChunk(args []string) (int, int, bool) {
	cx, err1 := strconv.Atoi(args[1])
	cz, err2 := strconv.Atoi(args[2])
	return cx, cz, err1 == nil && err2 == nil
}

func loadChunk(env Env, args []string) Result {
	if len(args) < 3 {
		return usage("/conduit load <cx> <cz>")
	}
	cx, cz, okChunk := parseChunk(args)
	if !okChunk {
		return invalidCoords()
	}
	n, loaded := env.LoadChunk(cx, cz)
	if !loaded {
		return fail(protocol.ErrConflict, "Chunk [%d, %d] already loaded", cx, cz)
	}
	return ok("Loaded chunk [%d, %d] with %d conduits", cx, cz, n)
}

func unloadChunk(env Env, args []string) Result {
	if len(args) < 3 {
		return usage("/conduit unload <cx> <cz>")
	}
	cx, cz, okChunk := parseChunk(args)
	if !okChunk {
		return invalidCoords()
	}
	n, unloaded := env.UnloadChunk(cx, cz)
	if !unloaded {
		return fail(protocol.ErrNotLoaded, "Chunk [%d, %d] not loaded", cx, cz)
	}
	return ok("Unloaded chunk [%d, %d] with %d conduits", cx, cz, n)
}

func stats(env Env) Result {
	s := env.Stats()
	return ok("tick=%d networks=%d blocks=%d last_id=%d chunks=%d",
		s.Tick, s.Networks, s.Blocks, s.LastID, s.LoadedChunks)
}
