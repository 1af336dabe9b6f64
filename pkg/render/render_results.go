// Write resampling results to a spreadsheet, a delimited text file or a
// SQLite database, chosen by the output file extension.

package render

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"github.com/yumyai/habconn/internal/util"
	"github.com/yumyai/habconn/logger"
	"github.com/yumyai/habconn/pkg/db"
	"github.com/yumyai/habconn/pkg/model"
	"go.uber.org/zap"
)

var ErrUnsupportedFormat = errors.New("Unsupported output format")

type Format int

const (
	FormatXLSX Format = iota
	FormatCSV
	FormatTSV
	FormatSQLite
)

func (f Format) String() string {
	switch f {
	case FormatXLSX:
		return "xlsx"
	case FormatCSV:
		return "csv"
	case FormatTSV:
		return "tsv"
	case FormatSQLite:
		return "sqlite"
	}
	return "unknown"
}

// ResultSheet is the worksheet name used in xlsx output.
const ResultSheet = "Results"

// Header is the column row of every tabular output.
var Header = []string{"Iteration", "Group", "Gene Avg", "Sampled Genes", "Sampled Samples"}

func DetectFormat(path string) (Format, error) {
	switch util.Ext(path) {
	case "xlsx":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	case "tsv", "txt":
		return FormatTSV, nil
	case "db", "sqlite", "sqlite3":
		return FormatSQLite, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// FormatList renders ids the way a list cell reads: ['a', 'b'].
func FormatList(ids []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('\'')
		b.WriteString(id)
		b.WriteByte('\'')
	}
	b.WriteByte(']')
	return b.String()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteResults writes results to path in the format its extension names.
// For SQLite output the run id is returned, otherwise "".
func WriteResults(ctx context.Context, path string, run db.RunInfo, results []model.SampleResult) (string, error) {

	format, err := DetectFormat(path)
	if err != nil {
		return "", err
	}

	var runID string
	switch format {
	case FormatXLSX:
		err = WriteXLSX(path, results)
	case FormatCSV:
		err = writeDelimitedFile(path, ',', results)
	case FormatTSV:
		err = writeDelimitedFile(path, '\t', results)
	case FormatSQLite:
		runID, err = writeSQLite(ctx, path, run, results)
	}
	if err != nil {
		return "", err
	}

	logger.Info("Results written",
		zap.String("path", path),
		zap.String("format", format.String()),
		zap.Int("rows", len(results)))

	return runID, nil
}

func WriteXLSX(path string, results []model.SampleResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultSheet); err != nil {
		return err
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(ResultSheet, "A1", &header); err != nil {
		return err
	}

	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{r.Iteration, r.Group, r.GeneAvg, FormatList(r.SampledGenes), FormatList(r.SampledSamples)}
		if err := f.SetSheetRow(ResultSheet, cell, &row); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func writeDelimitedFile(path string, comma rune, results []model.SampleResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteDelimited(f, comma, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteDelimited writes the header and one line per result.
func WriteDelimited(w io.Writer, comma rune, results []model.SampleResult) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma

	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range results {
		rec := []string{
			strconv.Itoa(r.Iteration),
			r.Group,
			formatScore(r.GeneAvg),
			FormatList(r.SampledGenes),
			FormatList(r.SampledSamples),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeSQLite(ctx context.Context, path string, run db.RunInfo, results []model.SampleResult) (string, error) {
	store, err := db.OpenResultStore(path)
	if err != nil {
		return "", err
	}
	defer store.Close()

	return store.SaveRun(ctx, run, results)
}
