// Habitat assignment table: one row per sequence pair with columns
// Group, Gene, Sample and Habitat.

package habitat

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yumyai/habconn/logger"
	"github.com/yumyai/habconn/pkg/model"
	"go.uber.org/zap"
)

var ErrMissingColumn = errors.New("Required column missing")
var ErrEmptyTable = errors.New("Habitat table has no rows")
var ErrConflictingHabitat = errors.New("Sequence assigned to more than one habitat")

// Columns required in the header, in any order.
var Columns = []string{"Group", "Gene", "Sample", "Habitat"}

type RowError struct {
	Line int
	Msg  string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Row error (line %d): %s", e.Line, e.Msg)
}

type Row struct {
	Line    int
	Group   string
	Gene    string
	Sample  string
	Habitat string
}

type Table struct {
	Rows []Row
}

// Membership is satisfied by trees.
type Membership interface {
	Contains(id string) bool
}

func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Read parses a delimited table. The delimiter is whichever of comma,
// semicolon or tab occurs most in the header line.
func Read(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(head)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, err
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	table := &Table{Rows: make([]Row, 0, 256)}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		if isBlank(rec) {
			continue
		}

		row := Row{Line: line}
		fields := []*string{&row.Group, &row.Gene, &row.Sample, &row.Habitat}
		for i, col := range Columns {
			if idx[col] >= len(rec) {
				return nil, &RowError{Line: line, Msg: fmt.Sprintf("missing %s field", col)}
			}
			v := strings.TrimSpace(rec[idx[col]])
			if v == "" {
				return nil, &RowError{Line: line, Msg: fmt.Sprintf("empty %s field", col)}
			}
			*fields[i] = v
		}
		table.Rows = append(table.Rows, row)
	}

	if len(table.Rows) == 0 {
		return nil, ErrEmptyTable
	}
	return table, nil
}

func detectDelimiter(header []byte) rune {
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if c := bytes.Count(header, []byte(string(d))); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(Columns))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		for _, col := range Columns {
			if _, seen := idx[col]; !seen && strings.EqualFold(name, col) {
				idx[col] = i
			}
		}
	}
	for _, col := range Columns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return idx, nil
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Filter keeps the rows whose Gene is a leaf of genes and reports how many
// rows were dropped. Samples are not checked here; ones missing from their
// tree are skipped when the sample side is grouped.
func (t *Table) Filter(genes Membership) (*Table, int) {
	kept := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		if genes.Contains(r.Gene) {
			kept = append(kept, r)
		}
	}
	dropped := len(t.Rows) - len(kept)
	if dropped > 0 {
		logger.Warn("Dropped rows whose gene is not in the gene tree",
			zap.Int("dropped", dropped), zap.Int("kept", len(kept)))
	}
	return &Table{Rows: kept}, dropped
}

// Datasets splits the table by Group in order of first appearance.
func (t *Table) Datasets() ([]model.Dataset, error) {
	if len(t.Rows) == 0 {
		return nil, ErrEmptyTable
	}

	var order []string
	byName := make(map[string]*model.Dataset)

	for _, r := range t.Rows {
		ds, ok := byName[r.Group]
		if !ok {
			ds = &model.Dataset{
				Name:           r.Group,
				GeneHabitats:   make(map[string]string),
				SampleHabitats: make(map[string]string),
				HabitatCounts:  make(map[string]int),
			}
			byName[r.Group] = ds
			order = append(order, r.Group)
		}

		if err := assign(ds.GeneHabitats, r.Gene, r.Habitat, r.Line); err != nil {
			return nil, err
		}
		if err := assign(ds.SampleHabitats, r.Sample, r.Habitat, r.Line); err != nil {
			return nil, err
		}
		ds.Genes = append(ds.Genes, r.Gene)
		ds.Samples = append(ds.Samples, r.Sample)
		ds.HabitatCounts[r.Habitat]++
	}

	out := make([]model.Dataset, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

func assign(m map[string]string, id, habitat string, line int) error {
	if prev, ok := m[id]; ok && prev != habitat {
		return fmt.Errorf("%w: %s is %s and %s (line %d)", ErrConflictingHabitat, id, prev, habitat, line)
	}
	m[id] = habitat
	return nil
}
