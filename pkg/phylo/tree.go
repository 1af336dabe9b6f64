// Phylogenetic trees read from Newick files.
//
// Only the two things the resampling needs are kept: the leaf order of the
// tree and the length of the branch joining each leaf to its parent.

package phylo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/evolbioinfo/gotree/io/newick"
	gotree "github.com/evolbioinfo/gotree/tree"
)

// DefaultBranchLength is given to leaves whose branch carries no length.
const DefaultBranchLength = 1.0

var ErrEmptyTree = errors.New("Tree has no named leaves")
var ErrDuplicateLeaf = errors.New("Duplicate leaf name")

type TreeError struct {
	Path string
	Err  error
}

func (e *TreeError) Error() string {
	return fmt.Sprintf("Tree error (%s): %s", e.Path, e.Err)
}

func (e *TreeError) Unwrap() error {
	return e.Err
}

// Tree is immutable once built.
type Tree struct {
	order    []string
	position map[string]int
	distance map[string]float64
}

// Load reads a Newick tree from path.
func Load(path string, missingLength float64) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &TreeError{Path: path, Err: err}
	}
	defer f.Close()

	t, err := Parse(f, missingLength)
	if err != nil {
		return nil, &TreeError{Path: path, Err: err}
	}
	return t, nil
}

// Parse reads one Newick tree. Internal node labels and support values are
// accepted and ignored.
func Parse(r io.Reader, missingLength float64) (*Tree, error) {
	gt, err := newick.NewParser(r).Parse()
	if err != nil {
		return nil, fmt.Errorf("parse newick: %w", err)
	}
	return fromGotree(gt, missingLength)
}

// ParseString is Parse for an in-memory Newick string.
func ParseString(nwk string, missingLength float64) (*Tree, error) {
	return Parse(strings.NewReader(nwk), missingLength)
}

func fromGotree(gt *gotree.Tree, missingLength float64) (*Tree, error) {
	root := gt.Root()
	if root == nil {
		return nil, ErrEmptyTree
	}

	t := &Tree{
		order:    make([]string, 0, 64),
		position: make(map[string]int),
		distance: make(map[string]float64),
	}

	var walkErr error
	var walk func(cur, prev *gotree.Node, length float64)
	walk = func(cur, prev *gotree.Node, length float64) {
		if walkErr != nil {
			return
		}
		neigh := cur.Neigh()
		edges := cur.Edges()

		// A leaf only touches its parent. The root is never a leaf unless it
		// is the whole tree.
		isLeaf := (prev != nil && len(neigh) == 1) || len(neigh) == 0
		if isLeaf {
			if walkErr = t.addLeaf(cur.Name(), length); walkErr != nil {
				return
			}
			return
		}

		for i, next := range neigh {
			if next == prev {
				continue
			}
			l := edges[i].Length()
			if l < 0 { // no length given
				l = missingLength
			}
			walk(next, cur, l)
		}
	}
	walk(root, nil, missingLength)

	if walkErr != nil {
		return nil, walkErr
	}
	if len(t.order) == 0 {
		return nil, ErrEmptyTree
	}
	return t, nil
}

func (t *Tree) addLeaf(name string, length float64) error {
	if name == "" {
		return nil // unnamed leaves cannot be matched to any table row
	}
	if _, dup := t.position[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateLeaf, name)
	}
	t.position[name] = len(t.order)
	t.order = append(t.order, name)
	t.distance[name] = length
	return nil
}

// LeafOrder returns the leaves left to right as written in the Newick text.
func (t *Tree) LeafOrder() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Distance is the branch length between the leaf and its parent.
func (t *Tree) Distance(id string) (float64, bool) {
	d, ok := t.distance[id]
	return d, ok
}

func (t *Tree) Position(id string) (int, bool) {
	p, ok := t.position[id]
	return p, ok
}

func (t *Tree) Contains(id string) bool {
	_, ok := t.position[id]
	return ok
}

func (t *Tree) Len() int {
	return len(t.order)
}
