package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/yumyai/habconn/internal/util"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("Invalid configuration")

// EnvPrefix prefixes every environment variable read by LoadEnv.
const EnvPrefix = "HABCONN_"

type Config struct {
	HabitatFile         string  `yaml:"habitat_file" validate:"required"`
	GeneTreeFile        string  `yaml:"gene_tree_file" validate:"required"`
	SampleTreeFile      string  `yaml:"sample_tree_file" validate:"required"`
	OutputFile          string  `yaml:"output_file" validate:"required"`
	Iterations          int     `yaml:"iterations" validate:"gte=1"`
	MaxSampleSize       int     `yaml:"max_sample_size" validate:"gte=0"`
	ShuffleTrials       int     `yaml:"shuffle_trials" validate:"gte=0"`
	Workers             int     `yaml:"workers" validate:"gte=1"`
	Seed                uint64  `yaml:"seed"`
	DistancePrecision   float64 `yaml:"distance_precision" validate:"gt=0"`
	MissingBranchLength float64 `yaml:"missing_branch_length" validate:"gte=0"`
	LogLevel            string  `yaml:"log_level" validate:"oneof=debug info warn error"`
}

func Default() Config {
	return Config{
		Iterations:          999,
		MaxSampleSize:       30,
		ShuffleTrials:       0,
		Workers:             1,
		DistancePrecision:   1e-9,
		MissingBranchLength: 1.0,
		LogLevel:            "info",
	}
}

// LoadDotEnv loads envFile into the process environment without overriding
// variables that are already set. It reports whether the file was found.
func LoadDotEnv(envFile string) bool {
	return godotenv.Load(envFile) == nil
}

// LoadEnv overrides fields from HABCONN_* environment variables.
func (c *Config) LoadEnv() error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, parse func(string) error) error {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			return nil
		}
		if err := parse(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%w: %s%s=%q", ErrInvalidConfig, EnvPrefix, name, v)
		}
		return nil
	}
	toInt := func(dst *int) func(string) error {
		return func(s string) (err error) { *dst, err = strconv.Atoi(s); return }
	}
	toFloat := func(dst *float64) func(string) error {
		return func(s string) (err error) { *dst, err = strconv.ParseFloat(s, 64); return }
	}

	str("HABITAT_FILE", &c.HabitatFile)
	str("GENE_TREE_FILE", &c.GeneTreeFile)
	str("SAMPLE_TREE_FILE", &c.SampleTreeFile)
	str("OUTPUT_FILE", &c.OutputFile)
	str("LOG_LEVEL", &c.LogLevel)

	return errors.Join(
		num("ITERATIONS", toInt(&c.Iterations)),
		num("MAX_SAMPLE_SIZE", toInt(&c.MaxSampleSize)),
		num("SHUFFLE_TRIALS", toInt(&c.ShuffleTrials)),
		num("WORKERS", toInt(&c.Workers)),
		num("SEED", func(s string) (err error) { c.Seed, err = strconv.ParseUint(s, 10, 64); return }),
		num("DISTANCE_PRECISION", toFloat(&c.DistancePrecision)),
		num("MISSING_BRANCH_LENGTH", toFloat(&c.MissingBranchLength)),
	)
}

// LoadYAML overrides the fields present in a YAML file.
func (c *Config) LoadYAML(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and that the input files exist.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	for _, f := range []string{c.HabitatFile, c.GeneTreeFile, c.SampleTreeFile} {
		if !util.FileExists(f) {
			return fmt.Errorf("%w: input file %s does not exist", ErrInvalidConfig, f)
		}
	}
	if !util.ParentDirExists(c.OutputFile) {
		return fmt.Errorf("%w: output directory for %s does not exist", ErrInvalidConfig, c.OutputFile)
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
