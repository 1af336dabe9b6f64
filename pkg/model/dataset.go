package model

import (
	"errors"
	"sort"
)

var ErrInvalidDenominator = errors.New("Normalization denominator must be positive")
var ErrUnknownHabitat = errors.New("Sequence has no habitat assignment")

// Tree is the read-only view of a phylogenetic tree the core works against.
type Tree interface {
	LeafOrder() []string
	Distance(id string) (float64, bool)
	Position(id string) (int, bool)
}

// Dataset is one "Group" of the habitat table. Gene and Sample ids live in
// different trees but share the habitat labels of their row.
type Dataset struct {
	Name           string
	Genes          []string
	Samples        []string
	GeneHabitats   map[string]string
	SampleHabitats map[string]string
	HabitatCounts  map[string]int // rows per habitat
}

// Habitats returns the habitat labels of the dataset in sorted order.
func (d *Dataset) Habitats() []string {
	labels := make([]string, 0, len(d.HabitatCounts))
	for h := range d.HabitatCounts {
		labels = append(labels, h)
	}
	sort.Strings(labels)
	return labels
}

// SampleResult is the outcome of one iteration over one Dataset.
type SampleResult struct {
	Iteration      int      `json:"iteration"`
	Group          string   `json:"group"`
	GeneAvg        float64  `json:"gene_avg"`
	SampledGenes   []string `json:"sampled_genes"`
	SampledSamples []string `json:"sampled_samples"`
}
