package model

import (
	"fmt"
	"sort"
)

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

// Step returns the position adjacent to v across face f.
func (v Vec3i) Step(f Face) Vec3i { return v.Add(f.Offset()) }

// String formats the position the way operator-facing messages print it.
func (v Vec3i) String() string { return fmt.Sprintf("(%d, %d, %d)", v.X, v.Y, v.Z) }

func VecFromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

// Less orders positions by X, then Y, then Z.
func Less(a, b Vec3i) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

func SortPositions(ps []Vec3i) {
	sort.Slice(ps, func(i, j int) bool { return Less(ps[i], ps[j]) })
}

func SortedPositions[T any](m map[Vec3i]T) []Vec3i {
	if len(m) == 0 {
		return nil
	}
	out := make([]Vec3i, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	SortPositions(out)
	return out
}
