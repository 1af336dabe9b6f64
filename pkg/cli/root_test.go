package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yumyai/habconn/pkg/config"
)

const (
	geneNwk   = "((g1:0,g2:0):0.1,(g3:0.2,(g4:0.1,g5:0):0.3):0.1,(g6:0.4,g7:0.4):0.2,g8:0.05);"
	sampleNwk = "((s8:0.1,s7:0):0.2,(s6:0,s5:0.3):0.1,(s4:0.2,(s3:0,s2:0):0.1):0.1,s1:0.5);"
	habitats  = `Group,Gene,Sample,Habitat
cattle,g1,s1,gut
cattle,g2,s2,gut
cattle,g3,s3,soil
cattle,g4,s4,soil
cattle,g5,s5,gut
pig,g6,s6,gut
pig,g7,s7,water
pig,g8,s8,gut
pig,g9,s9,water
`
)

func writeInputs(t *testing.T) (dir string, args []string) {
	t.Helper()
	dir = t.TempDir()
	files := map[string]string{
		"habitats.csv": habitats,
		"gene.nwk":     geneNwk,
		"sample.nwk":   sampleNwk,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	args = []string{
		"--habitat_file", filepath.Join(dir, "habitats.csv"),
		"--gene_tree_file", filepath.Join(dir, "gene.nwk"),
		"--sample_tree_file", filepath.Join(dir, "sample.nwk"),
		"--env_file", filepath.Join(dir, "missing.env"),
		"--log_level", "error",
	}
	return dir, args
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunWritesCSV(t *testing.T) {
	dir, args := writeInputs(t)
	output := filepath.Join(dir, "out.csv")

	summary, err := execute(t, append(args, "--output_file", output, "--iterations", "4", "--seed", "11")...)
	require.NoError(t, err)

	rows := readCSV(t, output)
	require.Len(t, rows, 1+4+4)
	assert.Equal(t, []string{"Iteration", "Group", "Gene Avg", "Sampled Genes", "Sampled Samples"}, rows[0])
	assert.Equal(t, []string{"1", "cattle"}, rows[1][:2])
	assert.Equal(t, []string{"4", "pig"}, rows[8][:2])

	// pig: g9 is not in the gene tree, so water only has g7/s7 and the
	// per-habitat target is 1; gut takes its shortest branch.
	assert.Equal(t, "['g7', 'g8']", rows[5][3])
	assert.Equal(t, "['s7', 's6']", rows[5][4])

	assert.Contains(t, summary, "cattle: 4 iterations")
	assert.Contains(t, summary, "pig: 4 iterations")
}

func TestRunSeedIsReproducible(t *testing.T) {
	dir, args := writeInputs(t)
	a := filepath.Join(dir, "a.tsv")
	b := filepath.Join(dir, "b.tsv")

	_, err := execute(t, append(args, "--output_file", a, "--iterations", "6", "--seed", "5", "-q")...)
	require.NoError(t, err)
	_, err = execute(t, append(args, "--output_file", b, "--iterations", "6", "--seed", "5", "--workers", "2", "-q")...)
	require.NoError(t, err)

	x, err := os.ReadFile(a)
	require.NoError(t, err)
	y, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, string(x), string(y))
}

func TestRunSQLiteOutput(t *testing.T) {
	dir, args := writeInputs(t)
	output := filepath.Join(dir, "runs.db")

	summary, err := execute(t, append(args, "--output_file", output, "--iterations", "2")...)
	require.NoError(t, err)
	assert.FileExists(t, output)
	assert.NotContains(t, summary, "(unsaved)")
}

func TestFlagsOverrideEnvAndYAML(t *testing.T) {
	dir, args := writeInputs(t)
	output := filepath.Join(dir, "out.csv")
	yml := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("iterations: 3\nmax_sample_size: 1\n"), 0644))
	t.Setenv("HABCONN_ITERATIONS", "9")
	t.Setenv("HABCONN_OUTPUT_FILE", output)

	// YAML beats the environment.
	_, err := execute(t, append(args, "--config", yml, "-q")...)
	require.NoError(t, err)
	rows := readCSV(t, output)
	assert.Len(t, rows, 1+3+3)
	// One gene per habitat: soil keeps its shorter branch g4.
	assert.Contains(t, rows[1][3], "'g4'")
	assert.NotContains(t, rows[1][3], "'g3'")

	// Flags beat both.
	_, err = execute(t, append(args, "--config", yml, "--iterations", "2", "-q")...)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, output), 1+2+2)
}

func TestRunErrors(t *testing.T) {
	dir, args := writeInputs(t)

	_, err := execute(t, args...)
	assert.ErrorIs(t, err, config.ErrInvalidConfig, "output_file is required")

	_, err = execute(t, append(args, "--output_file", filepath.Join(dir, "out.csv"), "--iterations", "0")...)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "gene.nwk"), []byte("((g1,g2);"), 0644))
	_, err = execute(t, append(args, "--output_file", filepath.Join(dir, "out.csv"))...)
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "out.csv"))
}
