package model

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
)

// SampleBalanced draws up to perHabitat ids from every habitat, spreading
// the draw over as many distance groups as possible, and returns the union
// in tree leaf order.
//
// Within a habitat, distance groups are visited from the shortest branch
// upwards. A group that fits in the remaining quota is taken whole, a larger
// one contributes a uniform random subset of exactly the remaining count. If
// the quota is still open after that pass, the groups are cycled again in
// the same order, one unused id each per round, until the quota is filled or
// every group is used up. A habitat with fewer ids than the quota gives all
// of them.
func SampleBalanced(rng *rand.Rand, tree Tree, groups DistanceGroups, habitats map[string]string, perHabitat int) ([]string, error) {

	byHabitat, err := splitByHabitat(groups, habitats)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(byHabitat))
	for h := range byHabitat {
		labels = append(labels, h)
	}
	sort.Strings(labels) // fixed draw order for seeded runs

	sampled := make([]string, 0, perHabitat*len(labels))
	for _, h := range labels {
		sampled = append(sampled, sampleHabitat(rng, byHabitat[h], perHabitat)...)
	}

	return SortByTree(tree, sampled), nil
}

// splitByHabitat restricts every distance group to each habitat.
func splitByHabitat(groups DistanceGroups, habitats map[string]string) (map[string]DistanceGroups, error) {
	out := make(map[string]DistanceGroups)

	for _, k := range groups.Keys() {
		for _, id := range groups[k] {
			h, ok := habitats[id]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownHabitat, id)
			}
			if out[h] == nil {
				out[h] = make(DistanceGroups)
			}
			out[h][k] = append(out[h][k], id)
		}
	}

	return out, nil
}

func sampleHabitat(rng *rand.Rand, groups DistanceGroups, target int) []string {
	if target <= 0 {
		return nil
	}

	keys := groups.Keys()
	selected := make([]string, 0, target)
	used := make(map[string]struct{}, target)

	take := func(ids ...string) {
		for _, id := range ids {
			used[id] = struct{}{}
			selected = append(selected, id)
		}
	}

	// One pass, shortest branches first.
	for _, k := range keys {
		if len(selected) >= target {
			break
		}
		need := target - len(selected)
		members := groups[k]
		if len(members) <= need {
			take(members...)
		} else {
			take(drawWithoutReplacement(rng, members, need)...)
		}
	}

	// Round robin over what is left.
	for len(selected) < target {
		progressed := false
		for _, k := range keys {
			remaining := unused(groups[k], used)
			if len(remaining) > 0 {
				take(remaining[rng.IntN(len(remaining))])
				progressed = true
			}
			if len(selected) == target {
				break
			}
		}
		if !progressed {
			break
		}
	}

	return selected
}

func unused(ids []string, used map[string]struct{}) []string {
	var out []string
	for _, id := range ids {
		if _, ok := used[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// drawWithoutReplacement returns k distinct elements of ids chosen uniformly
// at random. ids is not modified.
func drawWithoutReplacement(rng *rand.Rand, ids []string, k int) []string {
	pool := slices.Clone(ids)
	for i := 0; i < k; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// SortByTree orders ids by their position in the tree leaf order. Ids that
// are not leaves go last, in their original relative order.
func SortByTree(tree Tree, ids []string) []string {
	out := slices.Clone(ids)
	pos := func(id string) int {
		if p, ok := tree.Position(id); ok {
			return p
		}
		return int(^uint(0) >> 1)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return pos(out[i]) < pos(out[j])
	})
	return out
}
