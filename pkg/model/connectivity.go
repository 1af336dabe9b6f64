package model

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Connectivity counts the neighbouring pairs of ids, taken circularly, whose
// habitats differ. The last id neighbours the first.
func Connectivity(ids []string, habitats map[string]string) int {
	n := len(ids)
	conn := 0
	for i := 0; i < n; i++ {
		if habitats[ids[i]] != habitats[ids[(i+1)%n]] {
			conn++
		}
	}
	return conn
}

// ConnectivityRange gives the reference connectivities of the habitat
// composition of ids. The minimum keeps every habitat in one block, the
// maximum deals habitats out round robin in sorted label order.
func ConnectivityRange(ids []string, habitats map[string]string) (minConn, maxConn int) {
	counts := make(map[string]int)
	for _, id := range ids {
		counts[habitats[id]]++
	}
	labels := make([]string, 0, len(counts))
	for h := range counts {
		labels = append(labels, h)
	}
	sort.Strings(labels)

	blocks := make([]string, 0, len(ids))
	for _, h := range labels {
		for range counts[h] {
			blocks = append(blocks, h)
		}
	}

	left := make(map[string]int, len(counts))
	for h, c := range counts {
		left[h] = c
	}
	dealt := make([]string, 0, len(ids))
	for len(dealt) < len(ids) {
		for _, h := range labels {
			if left[h] > 0 {
				dealt = append(dealt, h)
				left[h]--
			}
		}
	}

	return scoreLabels(blocks), scoreLabels(dealt)
}

// scoreLabels scores a virtual arrangement of habitat labels through
// placeholder sequence ids.
func scoreLabels(labels []string) int {
	ids := make([]string, len(labels))
	habitats := make(map[string]string, len(labels))
	for i, h := range labels {
		ids[i] = fmt.Sprintf("Seq%d", i)
		habitats[ids[i]] = h
	}
	return Connectivity(ids, habitats)
}

// ShuffleIdentical permutes ids among the positions held by members of the
// zero-distance group. Every other id keeps its place.
func ShuffleIdentical(rng *rand.Rand, ids []string, groups DistanceGroups) []string {
	out := make([]string, len(ids))
	copy(out, ids)

	members := groups[ZeroDistance]
	if len(members) < 2 {
		return out
	}
	inGroup := make(map[string]struct{}, len(members))
	for _, id := range members {
		inGroup[id] = struct{}{}
	}

	var positions []int
	for i, id := range ids {
		if _, ok := inGroup[id]; ok {
			positions = append(positions, i)
		}
	}
	if len(positions) < 2 {
		return out
	}

	perm := rng.Perm(len(positions))
	for i, p := range positions {
		out[p] = ids[positions[perm[i]]]
	}
	return out
}

// Score holds normalized connectivities over the shuffle trials.
type Score struct {
	Min float64
	Max float64
	Avg float64
}

// Normalize scores ids and maps the result linearly from the reference
// range of its habitat composition onto [1/denominator, 1]. With trials > 0
// the score is taken over that many zero-distance shuffles; with trials == 0
// the ids are scored as given. A composition whose reference minimum equals
// its maximum normalizes to 1/denominator.
func Normalize(rng *rand.Rand, ids []string, habitats map[string]string, groups DistanceGroups, trials, denominator int) (Score, error) {
	if denominator <= 0 {
		return Score{}, fmt.Errorf("%w: %d", ErrInvalidDenominator, denominator)
	}

	minConn, maxConn := ConnectivityRange(ids, habitats)

	var scores []float64
	if trials <= 0 {
		scores = []float64{float64(Connectivity(ids, habitats))}
	} else {
		scores = make([]float64, 0, trials)
		for range trials {
			shuffled := ShuffleIdentical(rng, ids, groups)
			scores = append(scores, float64(Connectivity(shuffled, habitats)))
		}
	}

	floor := 1 / float64(denominator)
	if minConn == maxConn {
		return Score{Min: floor, Max: floor, Avg: floor}, nil
	}

	scale := func(raw float64) float64 {
		return (raw-float64(minConn))/float64(maxConn-minConn)*(1-floor) + floor
	}

	return Score{
		Min: scale(floats.Min(scores)),
		Max: scale(floats.Max(scores)),
		Avg: scale(stat.Mean(scores, nil)),
	}, nil
}
