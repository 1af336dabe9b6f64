package model

import (
	"math/rand/v2"
	"testing"
)

// fakeTree is a leaf order with per-leaf branch lengths.
type fakeTree struct {
	order []string
	dist  map[string]float64
	pos   map[string]int
}

func newFakeTree(t *testing.T, leaves ...any) *fakeTree {
	t.Helper()
	if len(leaves)%2 != 0 {
		t.Fatalf("leaves must be id/distance pairs")
	}
	ft := &fakeTree{dist: map[string]float64{}, pos: map[string]int{}}
	for i := 0; i < len(leaves); i += 2 {
		id := leaves[i].(string)
		ft.pos[id] = len(ft.order)
		ft.order = append(ft.order, id)
		ft.dist[id] = leaves[i+1].(float64)
	}
	return ft
}

func (f *fakeTree) LeafOrder() []string { return append([]string(nil), f.order...) }

func (f *fakeTree) Distance(id string) (float64, bool) {
	d, ok := f.dist[id]
	return d, ok
}

func (f *fakeTree) Position(id string) (int, bool) {
	p, ok := f.pos[id]
	return p, ok
}

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

// isSubsequence reports whether sub appears in order inside full.
func isSubsequence(sub, full []string) bool {
	i := 0
	for _, id := range full {
		if i < len(sub) && sub[i] == id {
			i++
		}
	}
	return i == len(sub)
}
