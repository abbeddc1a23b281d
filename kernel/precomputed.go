package kernel

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
	"github.com/YuminosukeSato/scigp/pkg/log"
)

var _ Kernel = (*Precomputed)(nil)

// Precomputed looks kernel values up in a user supplied square matrix. The
// first attribute of every row is the row's index into that matrix; the
// remaining attributes are ignored.
type Precomputed struct {
	matrix [][]float64
	source string
}

// NewPrecomputed validates that m is square and symmetric.
func NewPrecomputed(m [][]float64) (*Precomputed, error) {
	n := len(m)
	if n == 0 {
		return nil, scigperrors.NewConfigurationError("PrecomputedKernel", "matrix", "matrix is empty", 0)
	}
	for i, row := range m {
		if len(row) != n {
			return nil, scigperrors.NewConfigurationError("PrecomputedKernel", "matrix",
				fmt.Sprintf("row %d has %d columns, want %d", i, len(row), n), len(row))
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if m[i][j] != m[j][i] {
				return nil, scigperrors.NewConfigurationError("PrecomputedKernel", "matrix",
					fmt.Sprintf("matrix is not symmetric at (%d,%d)", i, j), m[i][j])
			}
		}
	}
	cp := make([][]float64, n)
	for i := range m {
		cp[i] = append([]float64(nil), m[i]...)
	}
	return &Precomputed{matrix: cp}, nil
}

// LoadPrecomputed reads a kernel matrix file (see ReadMatrix).
func LoadPrecomputed(path string) (*Precomputed, error) {
	if path == "" {
		return nil, scigperrors.NewConfigurationError("PrecomputedKernel", "matrix_file", "a matrix file or inline matrix is required", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, scigperrors.NewConfigurationError("PrecomputedKernel", "matrix_file", err.Error(), path)
	}
	defer f.Close()

	m, err := ReadMatrix(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading kernel matrix %s", path)
	}
	k, err := NewPrecomputed(m)
	if err != nil {
		return nil, err
	}
	k.source = path
	log.GetLoggerWithName("kernel").Info("loaded precomputed kernel matrix",
		"path", path, log.SamplesKey, len(m))
	return k, nil
}

// ReadMatrix parses the text matrix format: an optional run of '%' comment
// lines, a "rows cols" header, then rows·cols whitespace separated values.
func ReadMatrix(r io.Reader) ([][]float64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var fields []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		fields = append(fields, strings.Fields(line)...)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning matrix")
	}
	if len(fields) < 2 {
		return nil, errors.New("matrix header \"rows cols\" missing")
	}
	rows, err1 := strconv.Atoi(fields[0])
	cols, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil || rows <= 0 || cols <= 0 {
		return nil, errors.Newf("invalid matrix header %q %q", fields[0], fields[1])
	}
	values := fields[2:]
	if len(values) != rows*cols {
		return nil, errors.Newf("matrix header declares %dx%d but %d values follow", rows, cols, len(values))
	}

	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			v, err := strconv.ParseFloat(values[i*cols+j], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "matrix entry (%d,%d)", i, j)
			}
			m[i][j] = v
		}
	}
	return m, nil
}

func (k *Precomputed) index(x []float64) (int, error) {
	if len(x) == 0 {
		return 0, errors.New("row has no index attribute")
	}
	v := x[0]
	if math.IsNaN(v) || v != math.Trunc(v) || v < 0 || int(v) >= len(k.matrix) {
		return 0, errors.Newf("index attribute %v is not a valid row of the %dx%d kernel matrix", v, len(k.matrix), len(k.matrix))
	}
	return int(v), nil
}

// Eval implements Kernel.
func (k *Precomputed) Eval(a, b []float64) (float64, error) {
	i, err := k.index(a)
	if err != nil {
		return 0, err
	}
	j, err := k.index(b)
	if err != nil {
		return 0, err
	}
	return k.matrix[i][j], nil
}

// Config implements Kernel. The matrix is inlined so that a persisted
// model does not depend on the original file.
func (k *Precomputed) Config() Config {
	return Config{Type: TypePrecomputed, MatrixFile: k.source, Matrix: k.matrix}
}

func (k *Precomputed) String() string {
	if k.source != "" {
		return fmt.Sprintf("Using kernel matrix from file with name: %s", k.source)
	}
	return fmt.Sprintf("Using inline %dx%d kernel matrix", len(k.matrix), len(k.matrix))
}
