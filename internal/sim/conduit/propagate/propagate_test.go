package propagate

import (
	"reflect"
	"testing"

	"conduitcraft.ai/internal/sim/conduit/graph"
	"conduitcraft.ai/internal/sim/conduit/model"
)

type mapLookup map[model.Vec3i]model.State

func (m mapLookup) ConduitAt(p model.Vec3i) (model.State, bool) {
	s, ok := m[p]
	return s, ok
}

func conduit(cat model.Category, decay, power int) model.State {
	return model.State{Block: string(cat), Category: cat, MaxPower: 15, Mask: model.MaskAll, Decay: decay, Power: power}
}

func discover(t *testing.T, world mapLookup, seed model.Vec3i) graph.Graph {
	t.Helper()
	g, ok := graph.Discover(world, seed, graph.Options{})
	if !ok {
		t.Fatalf("discover %v failed", seed)
	}
	return g
}

func TestPropagateChain(t *testing.T) {
	world := mapLookup{
		{X: 0}: conduit(model.CategorySource, 0, 15),
		{X: 1}: conduit(model.CategoryRelay, 2, 0),
		{X: 2}: conduit(model.CategoryRelay, 2, 0),
		{X: 3}: conduit(model.CategorySink, 1, 0),
	}
	got := Propagate(discover(t, world, model.Vec3i{}))
	want := map[model.Vec3i]int{{X: 0}: 15, {X: 1}: 13, {X: 2}: 11, {X: 3}: 10}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Propagate=%v, want %v", got, want)
	}
}

func TestPropagateTwoSourcesTakesMax(t *testing.T) {
	world := mapLookup{
		{X: -1}: conduit(model.CategorySource, 0, 15),
		{X: 0}:  conduit(model.CategoryRelay, 3, 0),
		{X: 1}:  conduit(model.CategorySource, 0, 5),
	}
	got := Propagate(discover(t, world, model.Vec3i{}))
	if got[model.Vec3i{}] != 12 {
		t.Fatalf("relay=%d, want 12", got[model.Vec3i{}])
	}
	if got[model.Vec3i{X: 1}] != 5 || got[model.Vec3i{X: -1}] != 15 {
		t.Fatalf("sources overwritten: %v", got)
	}
}

func TestPropagateNoSourceSettlesAtZero(t *testing.T) {
	world := mapLookup{
		{}:     conduit(model.CategoryRelay, 1, 7),
		{Y: 1}: conduit(model.CategorySink, 1, 3),
	}
	for p, v := range Propagate(discover(t, world, model.Vec3i{})) {
		if v != 0 {
			t.Fatalf("level at %v=%d, want 0", p, v)
		}
	}
}

func TestPropagateSourceIsAuthoritative(t *testing.T) {
	// A weak source next to a strong one keeps its own level.
	world := mapLookup{
		{X: 0}: conduit(model.CategorySource, 0, 15),
		{X: 1}: conduit(model.CategorySource, 0, 2),
	}
	got := Propagate(discover(t, world, model.Vec3i{}))
	if got[model.Vec3i{X: 1}] != 2 {
		t.Fatalf("weak source=%d, want 2", got[model.Vec3i{X: 1}])
	}
}

func TestPropagateClampsToReceiverMax(t *testing.T) {
	small := conduit(model.CategoryRelay, 0, 0)
	small.MaxPower = 4
	world := mapLookup{
		{X: 0}: conduit(model.CategorySource, 0, 15),
		{X: 1}: small,
	}
	got := Propagate(discover(t, world, model.Vec3i{}))
	if got[model.Vec3i{X: 1}] != 4 {
		t.Fatalf("clamped relay=%d, want 4", got[model.Vec3i{X: 1}])
	}
}

func TestPropagateIsIdempotentAndBounded(t *testing.T) {
	world := mapLookup{}
	// 6x6 plane with sources in two corners and mixed decay.
	for x := 0; x < 6; x++ {
		for z := 0; z < 6; z++ {
			world[model.Vec3i{X: x, Z: z}] = conduit(model.CategoryRelay, (x+z)%3, 0)
		}
	}
	world[model.Vec3i{}] = conduit(model.CategorySource, 0, 15)
	world[model.Vec3i{X: 5, Z: 5}] = conduit(model.CategorySource, 0, 9)

	g := discover(t, world, model.Vec3i{X: 2, Z: 3})
	first := Propagate(g)
	for i := 0; i < 5; i++ {
		if again := Propagate(g); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, first, again)
		}
	}
	for p, v := range first {
		if v < 0 || v > world[p].MaxPower {
			t.Fatalf("level %d at %v out of bounds", v, p)
		}
	}
	lo, hi, ok := Range(first)
	if !ok || hi != 15 || lo < 0 {
		t.Fatalf("Range=%d,%d,%v", lo, hi, ok)
	}
}

func TestPropagateSameLayerNeighborFeeds(t *testing.T) {
	// X and A are both one hop from a source and adjacent to each other.
	world := mapLookup{
		{X: 0}:       conduit(model.CategorySource, 0, 15),
		{X: 1}:       conduit(model.CategoryRelay, 0, 0),
		{X: 1, Z: 1}: conduit(model.CategoryRelay, 0, 0),
		{X: 1, Z: 2}: conduit(model.CategorySource, 0, 2),
	}
	got := Propagate(discover(t, world, model.Vec3i{}))
	if got[model.Vec3i{X: 1}] != 15 || got[model.Vec3i{X: 1, Z: 1}] != 15 {
		t.Fatalf("X=%d A=%d, want 15 15", got[model.Vec3i{X: 1}], got[model.Vec3i{X: 1, Z: 1}])
	}
	if got[model.Vec3i{X: 1, Z: 2}] != 2 {
		t.Fatalf("weak source=%d, want 2", got[model.Vec3i{X: 1, Z: 2}])
	}
}

func TestPropagateSameLayerChainIgnoresOrder(t *testing.T) {
	// A layer-1 chain X-A1-A2 fed strongly at X; the mirrored layout puts
	// the chain in reverse sorted order.
	build := func(z func(int) int) (mapLookup, [3]model.Vec3i) {
		x, a1, a2 := model.Vec3i{X: 1, Z: z(0)}, model.Vec3i{X: 1, Z: z(1)}, model.Vec3i{X: 1, Z: z(2)}
		return mapLookup{
			{X: 0, Z: z(0)}: conduit(model.CategorySource, 0, 15),
			x:               conduit(model.CategoryRelay, 1, 0),
			a1:              conduit(model.CategoryRelay, 1, 0),
			a2:              conduit(model.CategoryRelay, 1, 0),
			{X: 2, Z: z(1)}: conduit(model.CategorySource, 0, 2),
			{X: 2, Z: z(2)}: conduit(model.CategorySource, 0, 2),
		}, [3]model.Vec3i{x, a1, a2}
	}
	for name, z := range map[string]func(int) int{
		"forward":  func(i int) int { return i },
		"mirrored": func(i int) int { return 2 - i },
	} {
		world, chain := build(z)
		got := Propagate(discover(t, world, chain[0]))
		for i, want := range []int{14, 13, 12} {
			if got[chain[i]] != want {
				t.Fatalf("%s: level at %v=%d, want %d", name, chain[i], got[chain[i]], want)
			}
		}
	}
}
