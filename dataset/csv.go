// Package dataset reads numeric training and query data from CSV files.
package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
)

// Options controls how a CSV file is split into attributes and target.
type Options struct {
	// TargetColumn is the zero-based target index; -1 selects the last column.
	TargetColumn int
	// WithoutTarget treats every column as an attribute and leaves Y nil.
	WithoutTarget bool
	// Header skips the first record and keeps it as column names.
	Header bool
	// Missing is the token for an unknown value. Empty cells are always missing.
	Missing string
}

// DefaultOptions reads a headed file with the target in the last column.
func DefaultOptions() Options {
	return Options{TargetColumn: -1, Header: true, Missing: "?"}
}

// Dataset is a parsed CSV file. Missing values are NaN.
type Dataset struct {
	X *mat.Dense
	Y []float64
	// Header names the attribute columns of X, followed by TargetName.
	Header     []string
	TargetName string
}

// Rows returns the number of records.
func (d *Dataset) Rows() int {
	r, _ := d.X.Dims()
	return r
}

// Column returns a copy of attribute column j.
func (d *Dataset) Column(j int) []float64 {
	return mat.Col(nil, j, d.X)
}

// LoadCSV opens path and parses it with Read.
func LoadCSV(path string, opts Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "scigp: open %s", path)
	}
	defer f.Close()
	d, err := Read(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "scigp: load %s", path)
	}
	return d, nil
}

// Read parses CSV records from r.
func Read(r io.Reader, opts Options) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, scigperrors.NewValueError("dataset.Read", err.Error())
	}

	var header []string
	if opts.Header && len(records) > 0 {
		header, records = records[0], records[1:]
	}
	if len(records) == 0 {
		return nil, errors.Wrap(scigperrors.ErrEmptyData, "dataset.Read")
	}

	cols := len(records[0])
	target := -1
	if !opts.WithoutTarget {
		target = opts.TargetColumn
		if target == -1 {
			target = cols - 1
		}
		if target < 0 || target >= cols {
			return nil, scigperrors.NewValidationError("target_column", "out of range", opts.TargetColumn)
		}
	}
	nAttr := cols
	if target >= 0 {
		nAttr--
	}
	if nAttr == 0 {
		return nil, scigperrors.NewValueError("dataset.Read", "no attribute columns")
	}

	X := mat.NewDense(len(records), nAttr, nil)
	var y []float64
	if target >= 0 {
		y = make([]float64, len(records))
	}
	for i, rec := range records {
		if len(rec) != cols {
			return nil, scigperrors.NewDataError("dataset.Read", i, scigperrors.NewDimensionError("dataset.Read", cols, len(rec), 1))
		}
		row := X.RawRowView(i)
		k := 0
		for j, cell := range rec {
			v, err := parseCell(cell, opts.Missing)
			if err != nil {
				return nil, scigperrors.NewDataError("dataset.Read", i, err)
			}
			if j == target {
				y[i] = v
				continue
			}
			row[k] = v
			k++
		}
	}

	d := &Dataset{X: X, Y: y}
	if header != nil {
		if len(header) != cols {
			return nil, scigperrors.NewDimensionError("dataset.Read", cols, len(header), 1)
		}
		d.Header = lo.Filter(header, func(_ string, j int) bool { return j != target })
		if target >= 0 {
			d.TargetName = header[target]
		}
	}
	return d, nil
}

func parseCell(cell, missing string) (float64, error) {
	s := strings.TrimSpace(cell)
	if s == "" || (missing != "" && s == missing) {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %q", s)
	}
	return v, nil
}
