package model

import (
	"math"
	"slices"
)

// DefaultPrecision is the resolution at which branch lengths are compared.
const DefaultPrecision = 1e-9

// DistanceKey is a branch length quantized to the grouping precision.
// Ordering keys orders the distances they stand for.
type DistanceKey int64

// ZeroDistance is the key of sequences indistinguishable from their parent.
const ZeroDistance DistanceKey = 0

func KeyOf(distance, precision float64) DistanceKey {
	if precision <= 0 {
		precision = DefaultPrecision
	}
	return DistanceKey(math.Round(distance / precision))
}

// DistanceGroups buckets sequence ids by their distance key. Ids keep the
// order in which they were grouped.
type DistanceGroups map[DistanceKey][]string

// Keys returns the group keys in ascending distance order.
func (g DistanceGroups) Keys() []DistanceKey {
	keys := make([]DistanceKey, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (g DistanceGroups) Len() int {
	n := 0
	for _, ids := range g {
		n += len(ids)
	}
	return n
}

// GroupByDistance partitions ids by the branch length of their leaf in tree.
// Ids that are not leaves of the tree are skipped, and repeated ids are
// grouped once.
func GroupByDistance(tree Tree, ids []string, precision float64) DistanceGroups {
	groups := make(DistanceGroups)
	seen := make(map[string]struct{}, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		d, ok := tree.Distance(id)
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		k := KeyOf(d, precision)
		groups[k] = append(groups[k], id)
	}

	return groups
}
