package model

import (
	"context"
	"hash/fnv"
	"math/rand/v2"

	"github.com/yumyai/habconn/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RandSource hands out the random generator for one iteration of one group.
type RandSource func(group string, iteration int) *rand.Rand

// EntropySource seeds every iteration afresh from the runtime's entropy.
func EntropySource(string, int) *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// SeededSource derives an independent, reproducible stream for every
// (group, iteration) pair from seed.
func SeededSource(seed uint64) RandSource {
	return func(group string, iteration int) *rand.Rand {
		h := fnv.New64a()
		h.Write([]byte(group))
		return rand.New(rand.NewPCG(seed^h.Sum64(), uint64(iteration)))
	}
}

type Options struct {
	Iterations    int
	MaxSampleSize int // 0 leaves the per-habitat target uncapped
	ShuffleTrials int
	Workers       int
	Precision     float64
}

// Driver repeats the balanced sampling and scoring for every dataset.
type Driver struct {
	GeneTree   Tree
	SampleTree Tree
	Options    Options
	Rand       RandSource
}

func NewDriver(geneTree, sampleTree Tree, opts Options, src RandSource) *Driver {
	if src == nil {
		src = EntropySource
	}
	return &Driver{
		GeneTree:   geneTree,
		SampleTree: sampleTree,
		Options:    opts,
		Rand:       src,
	}
}

// TargetPerHabitat is the smallest habitat count of the dataset, capped by
// maxSampleSize unless that is 0.
func TargetPerHabitat(counts map[string]int, maxSampleSize int) int {
	target := -1
	for _, c := range counts {
		if target < 0 || c < target {
			target = c
		}
	}
	if target < 0 {
		return 0
	}
	if maxSampleSize > 0 && maxSampleSize < target {
		target = maxSampleSize
	}
	return target
}

// Run processes every dataset and returns all results, datasets in input
// order and iterations ascending within each.
func (d *Driver) Run(ctx context.Context, datasets []Dataset) ([]SampleResult, error) {

	perGroup := make([][]SampleResult, len(datasets))

	workers := d.Options.Workers
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range datasets {
		g.Go(func() error {
			res, err := d.RunGroup(ctx, &datasets[i])
			if err != nil {
				return err
			}
			perGroup[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, res := range perGroup {
		total += len(res)
	}
	results := make([]SampleResult, 0, total)
	for _, res := range perGroup {
		results = append(results, res...)
	}
	return results, nil
}

// RunGroup runs all iterations for one dataset.
func (d *Driver) RunGroup(ctx context.Context, ds *Dataset) ([]SampleResult, error) {

	target := TargetPerHabitat(ds.HabitatCounts, d.Options.MaxSampleSize)

	logger.Info("Resampling group",
		zap.String("group", ds.Name),
		zap.Strings("habitats", ds.Habitats()),
		zap.Any("habitat_counts", ds.HabitatCounts),
		zap.Int("per_habitat", target),
		zap.Int("iterations", d.Options.Iterations))

	results := make([]SampleResult, 0, max(d.Options.Iterations, 0))
	for i := 1; i <= d.Options.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := d.Iterate(d.Rand(ds.Name, i), ds, target, i)
		if err != nil {
			return nil, err
		}

		logger.Debug("Iteration done",
			zap.String("group", ds.Name),
			zap.Int("iteration", i),
			zap.Int("genes", len(res.SampledGenes)),
			zap.Int("samples", len(res.SampledSamples)),
			zap.Float64("gene_avg", res.GeneAvg))

		results = append(results, res)
	}

	return results, nil
}

// Iterate is a single independent draw. It only reads ds.
func (d *Driver) Iterate(rng *rand.Rand, ds *Dataset, target, iteration int) (SampleResult, error) {

	geneGroups := GroupByDistance(d.GeneTree, ds.Genes, d.Options.Precision)
	genes, err := SampleBalanced(rng, d.GeneTree, geneGroups, ds.GeneHabitats, target)
	if err != nil {
		return SampleResult{}, err
	}

	sampleGroups := GroupByDistance(d.SampleTree, ds.Samples, d.Options.Precision)
	samples, err := SampleBalanced(rng, d.SampleTree, sampleGroups, ds.SampleHabitats, target)
	if err != nil {
		return SampleResult{}, err
	}

	score, err := Normalize(rng, genes, ds.GeneHabitats, geneGroups, d.Options.ShuffleTrials, target)
	if err != nil {
		return SampleResult{}, err
	}

	return SampleResult{
		Iteration:      iteration,
		Group:          ds.Name,
		GeneAvg:        score.Avg,
		SampledGenes:   genes,
		SampledSamples: samples,
	}, nil
}
