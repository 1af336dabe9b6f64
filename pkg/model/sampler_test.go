package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplerFixture(t *testing.T) (*fakeTree, map[string]string) {
	tree := newFakeTree(t,
		"S1", 0.4,
		"L1", 0.0,
		"S2", 0.0,
		"L2", 0.0,
		"L3", 0.1,
		"S3", 0.0,
		"L4", 0.2,
		"S4", 0.7,
		"L5", 0.2,
	)
	habitats := map[string]string{
		"L1": "land", "L2": "land", "L3": "land", "L4": "land", "L5": "land",
		"S1": "sea", "S2": "sea", "S3": "sea", "S4": "sea",
	}
	return tree, habitats
}

func countHabitats(ids []string, habitats map[string]string) map[string]int {
	out := map[string]int{}
	for _, id := range ids {
		out[habitats[id]]++
	}
	return out
}

func TestSampleBalancedShortestBranchesFirst(t *testing.T) {
	tree, habitats := samplerFixture(t)
	groups := GroupByDistance(tree, tree.LeafOrder(), DefaultPrecision)

	got, err := SampleBalanced(testRand(1), tree, groups, habitats, 3)
	require.NoError(t, err)

	// land: L1,L2 (0.0) fit whole, L3 (0.1) fills the quota.
	// sea: S2,S3 (0.0) fit whole, S1 (0.4) fills the quota.
	assert.Equal(t, []string{"S1", "L1", "S2", "L2", "L3", "S3"}, got)
}

func TestSampleBalancedRandomSubsetOfOverfullGroup(t *testing.T) {
	tree, habitats := samplerFixture(t)
	groups := GroupByDistance(tree, tree.LeafOrder(), DefaultPrecision)

	seen := map[string]bool{}
	for seed := uint64(0); seed < 64; seed++ {
		got, err := SampleBalanced(testRand(seed), tree, groups, habitats, 4)
		require.NoError(t, err)

		land := []string{}
		for _, id := range got {
			if habitats[id] == "land" {
				land = append(land, id)
			}
		}
		require.Len(t, land, 4)
		assert.Subset(t, land, []string{"L1", "L2", "L3"})
		for _, id := range land {
			if id == "L4" || id == "L5" {
				seen[id] = true
			}
		}
	}
	assert.True(t, seen["L4"] && seen["L5"], "both members of the 0.2 group get drawn")
}

func TestSampleBalancedShortHabitatTakesAll(t *testing.T) {
	tree, habitats := samplerFixture(t)
	groups := GroupByDistance(tree, tree.LeafOrder(), DefaultPrecision)

	got, err := SampleBalanced(testRand(7), tree, groups, habitats, 5)
	require.NoError(t, err)

	counts := countHabitats(got, habitats)
	assert.Equal(t, 5, counts["land"])
	assert.Equal(t, 4, counts["sea"], "sea only has four sequences")
	assert.Equal(t, tree.LeafOrder(), got)
}

func TestSampleBalancedInvariants(t *testing.T) {
	tree, habitats := samplerFixture(t)
	groups := GroupByDistance(tree, tree.LeafOrder(), DefaultPrecision)
	available := countHabitats(tree.LeafOrder(), habitats)

	for target := 0; target <= 6; target++ {
		for seed := uint64(0); seed < 20; seed++ {
			got, err := SampleBalanced(testRand(seed), tree, groups, habitats, target)
			require.NoError(t, err)

			for h, c := range countHabitats(got, habitats) {
				assert.LessOrEqual(t, c, target)
				assert.LessOrEqual(t, c, available[h])
				assert.Equal(t, min(target, available[h]), c)
			}
			assert.True(t, isSubsequence(got, tree.LeafOrder()), "%v not in tree order", got)

			uniq := map[string]bool{}
			for _, id := range got {
				assert.False(t, uniq[id], "duplicate %s", id)
				uniq[id] = true
			}
		}
	}
}

func TestSampleBalancedUnknownHabitat(t *testing.T) {
	tree, habitats := samplerFixture(t)
	delete(habitats, "L3")
	groups := GroupByDistance(tree, tree.LeafOrder(), DefaultPrecision)

	_, err := SampleBalanced(testRand(1), tree, groups, habitats, 2)
	assert.ErrorIs(t, err, ErrUnknownHabitat)
}

func TestSampleHabitatRoundRobinStopsWhenExhausted(t *testing.T) {
	groups := DistanceGroups{0: {"a"}, 5: {"b", "c"}}

	got := sampleHabitat(testRand(3), groups, 10)

	assert.ElementsMatch(t, []string{"a", "b", "c"}, got)
}

func TestDrawWithoutReplacement(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	for seed := uint64(0); seed < 30; seed++ {
		got := drawWithoutReplacement(testRand(seed), ids, 3)
		assert.Len(t, got, 3)
		assert.Subset(t, ids, got)
		assert.Len(t, map[string]bool{got[0]: true, got[1]: true, got[2]: true}, 3)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids, "input untouched")
}

func TestSortByTree(t *testing.T) {
	tree := newFakeTree(t, "A", 0.0, "B", 0.0, "C", 0.0, "D", 0.0)

	assert.Equal(t, []string{"A", "C", "D", "x"}, SortByTree(tree, []string{"D", "x", "A", "C"}))
}
