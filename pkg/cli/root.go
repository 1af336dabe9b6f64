package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/yumyai/habconn/logger"
	"github.com/yumyai/habconn/pkg/config"
	"github.com/yumyai/habconn/pkg/db"
	"github.com/yumyai/habconn/pkg/habitat"
	"github.com/yumyai/habconn/pkg/model"
	"github.com/yumyai/habconn/pkg/phylo"
	"github.com/yumyai/habconn/pkg/render"
	"go.uber.org/zap"
)

const VERSION = "0.1.0"

// NewRootCommand builds the habconn command. Settings are taken, lowest
// first, from the defaults, the .env file, HABCONN_* variables, the --config
// YAML file and the flags given on the command line.
func NewRootCommand() *cobra.Command {
	flagCfg := config.Default()
	var configFile, envFile string
	var quiet bool

	cmd := &cobra.Command{
		Use:     "habconn",
		Short:   "Habitat connectivity along phylogenetic leaf order",
		Version: VERSION,
		Long: `habconn resamples a habitat-balanced, tree-ordered subset of genes and samples
for every group of the habitat table and scores how often neighbouring genes
change habitat, normalized against the extremes for the same composition.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), flagCfg, configFile, envFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if quiet {
				out = io.Discard
			}
			return Run(cmd.Context(), cfg, out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flagCfg.HabitatFile, "habitat_file", "", "Path to the habitat file (CSV with Group, Gene, Sample, Habitat)")
	f.StringVar(&flagCfg.GeneTreeFile, "gene_tree_file", "", "Path to the gene tree file (Newick)")
	f.StringVar(&flagCfg.SampleTreeFile, "sample_tree_file", "", "Path to the sample tree file (Newick)")
	f.StringVar(&flagCfg.OutputFile, "output_file", "", "Output file (.xlsx, .csv, .tsv or .db)")
	f.IntVar(&flagCfg.Iterations, "iterations", flagCfg.Iterations, "Number of iterations for sampling")
	f.IntVar(&flagCfg.MaxSampleSize, "max_sample_size", flagCfg.MaxSampleSize, "Maximum sample size per habitat (0 = smallest habitat)")
	f.IntVar(&flagCfg.ShuffleTrials, "shuffle_trials", flagCfg.ShuffleTrials, "Zero-distance shuffles averaged per gene score")
	f.IntVar(&flagCfg.Workers, "workers", flagCfg.Workers, "Groups processed in parallel")
	f.Uint64Var(&flagCfg.Seed, "seed", flagCfg.Seed, "Random seed (0 = fresh entropy every iteration)")
	f.Float64Var(&flagCfg.DistancePrecision, "distance_precision", flagCfg.DistancePrecision, "Resolution for grouping branch lengths")
	f.Float64Var(&flagCfg.MissingBranchLength, "missing_branch_length", flagCfg.MissingBranchLength, "Length given to branches without one")
	f.StringVar(&flagCfg.LogLevel, "log_level", flagCfg.LogLevel, "Log level (debug, info, warn, error)")
	f.StringVar(&configFile, "config", "", "Optional YAML settings file")
	f.StringVar(&envFile, "env_file", ".env", "Optional dotenv file")
	f.BoolVarP(&quiet, "quiet", "q", false, "Do not print the run summary")

	return cmd
}

func resolveConfig(flags *pflag.FlagSet, flagCfg config.Config, configFile, envFile string) (config.Config, error) {
	cfg := config.Default()

	if !config.LoadDotEnv(envFile) {
		logger.Warn("No .env found, using local environment", zap.String("env_file", envFile))
	}
	if err := cfg.LoadEnv(); err != nil {
		return cfg, err
	}
	if configFile != "" {
		if err := cfg.LoadYAML(configFile); err != nil {
			return cfg, err
		}
	}

	overrides := map[string]func(){
		"habitat_file":          func() { cfg.HabitatFile = flagCfg.HabitatFile },
		"gene_tree_file":        func() { cfg.GeneTreeFile = flagCfg.GeneTreeFile },
		"sample_tree_file":      func() { cfg.SampleTreeFile = flagCfg.SampleTreeFile },
		"output_file":           func() { cfg.OutputFile = flagCfg.OutputFile },
		"iterations":            func() { cfg.Iterations = flagCfg.Iterations },
		"max_sample_size":       func() { cfg.MaxSampleSize = flagCfg.MaxSampleSize },
		"shuffle_trials":        func() { cfg.ShuffleTrials = flagCfg.ShuffleTrials },
		"workers":               func() { cfg.Workers = flagCfg.Workers },
		"seed":                  func() { cfg.Seed = flagCfg.Seed },
		"distance_precision":    func() { cfg.DistancePrecision = flagCfg.DistancePrecision },
		"missing_branch_length": func() { cfg.MissingBranchLength = flagCfg.MissingBranchLength },
		"log_level":             func() { cfg.LogLevel = flagCfg.LogLevel },
	}
	flags.Visit(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})

	return cfg, cfg.Validate()
}

// Run loads the inputs, resamples every group and writes the results. No
// output is written unless every group finished.
func Run(ctx context.Context, cfg config.Config, summary io.Writer) error {

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	if err := logger.InitLogger(level); err != nil {
		return err
	}
	defer logger.Sync()

	runID := uuid.NewString()
	started := time.Now()
	logger.Info("Start:", zap.String("Version", VERSION), zap.String("run_id", runID))

	geneTree, err := phylo.Load(cfg.GeneTreeFile, cfg.MissingBranchLength)
	if err != nil {
		return err
	}
	sampleTree, err := phylo.Load(cfg.SampleTreeFile, cfg.MissingBranchLength)
	if err != nil {
		return err
	}
	logger.Info("Trees loaded",
		zap.Int("gene_leaves", geneTree.Len()),
		zap.Int("sample_leaves", sampleTree.Len()))

	table, err := habitat.Load(cfg.HabitatFile)
	if err != nil {
		return err
	}
	table, _ = table.Filter(geneTree)
	datasets, err := table.Datasets()
	if err != nil {
		return err
	}
	logger.Info("Habitat table loaded", zap.Int("rows", len(table.Rows)), zap.Int("groups", len(datasets)))

	var src model.RandSource = model.EntropySource
	if cfg.Seed != 0 {
		src = model.SeededSource(cfg.Seed)
	}
	driver := model.NewDriver(geneTree, sampleTree, model.Options{
		Iterations:    cfg.Iterations,
		MaxSampleSize: cfg.MaxSampleSize,
		ShuffleTrials: cfg.ShuffleTrials,
		Workers:       cfg.Workers,
		Precision:     cfg.DistancePrecision,
	}, src)

	results, err := driver.Run(ctx, datasets)
	if err != nil {
		return err
	}

	run := db.RunInfo{
		RunID:          runID,
		StartedAt:      started,
		HabitatFile:    cfg.HabitatFile,
		GeneTreeFile:   cfg.GeneTreeFile,
		SampleTreeFile: cfg.SampleTreeFile,
		Iterations:     cfg.Iterations,
		MaxSampleSize:  cfg.MaxSampleSize,
		ShuffleTrials:  cfg.ShuffleTrials,
		Seed:           cfg.Seed,
	}
	savedID, err := render.WriteResults(ctx, cfg.OutputFile, run, results)
	if err != nil {
		return err
	}

	logger.Info("Done", zap.String("run_id", runID), zap.Duration("elapsed", time.Since(started)))

	return render.RenderSummary(summary, render.SummaryData{
		RunID:  savedID,
		Output: cfg.OutputFile,
		Groups: render.Summarize(results),
	})
}
