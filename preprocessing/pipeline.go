package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigp/core/model"
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
	"github.com/YuminosukeSato/scigp/pkg/log"
)

// PipelineConfig selects the stages of a Pipeline.
type PipelineConfig struct {
	Mode FilterMode
	// NominalColumns maps a column index to its number of categories.
	NominalColumns map[int]int
}

// Pipeline chains ReplaceMissing, NominalToBinary and the scaling filter
// chosen by Mode. Fields are exported for gob persistence; treat a fitted
// pipeline as read-only.
type Pipeline struct {
	model.BaseEstimator

	Mode    FilterMode
	Missing *ReplaceMissing
	Nominal *NominalToBinary
	Scaler  Filter

	// Witness is a copy of the first training row, used to check the
	// target transform.
	Witness []float64
	NInputs int
}

// NewPipeline validates cfg and returns an unfitted pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if !cfg.Mode.Valid() {
		return nil, scigperrors.NewConfigurationError("preprocessing", "filter", "unknown filter mode", int(cfg.Mode))
	}
	nominal, err := NewNominalToBinary(cfg.NominalColumns)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		Mode:    cfg.Mode,
		Missing: NewReplaceMissing(cfg.NominalColumns),
		Nominal: nominal,
	}
	switch cfg.Mode {
	case FilterNormalize:
		p.Scaler = NewNormalizer()
	case FilterStandardize:
		p.Scaler = NewStandardizer()
	}
	return p, nil
}

func (p *Pipeline) stages() []Filter {
	stages := []Filter{p.Missing, p.Nominal}
	if p.Scaler != nil {
		stages = append(stages, p.Scaler)
	}
	return stages
}

// FitTransform fits every stage on the output of the previous one and
// returns the transformed rows and targets. Targets must not be NaN.
func (p *Pipeline) FitTransform(X mat.Matrix, y, weights []float64) (*mat.Dense, []float64, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, nil, scigperrors.NewModelError("Pipeline.FitTransform", "empty data", scigperrors.ErrEmptyData)
	}
	if len(y) != r {
		return nil, nil, scigperrors.NewDimensionError("Pipeline.FitTransform", r, len(y), 0)
	}
	if len(weights) != r {
		return nil, nil, scigperrors.NewDimensionError("Pipeline.FitTransform", r, len(weights), 0)
	}

	cur := mat.DenseCopyOf(X)
	p.Witness = mat.Row(nil, 0, cur)
	p.NInputs = c

	curY := append([]float64(nil), y...)
	for _, f := range p.stages() {
		if err := f.Fit(cur, curY, weights); err != nil {
			return nil, nil, err
		}
		next, nextY, err := applyAll(f, cur, curY)
		if err != nil {
			return nil, nil, err
		}
		cur, curY = next, nextY
	}
	p.SetFitted()

	_, out := cur.Dims()
	log.GetLoggerWithName("preprocessing").Debug("pipeline fitted",
		log.OperationKey, log.OperationFitTransform,
		log.FilterKey, p.Mode.String(),
		log.SamplesKey, r,
		log.FeaturesKey, out,
	)
	return cur, curY, nil
}

// TransformRow maps a query row with an unknown target.
func (p *Pipeline) TransformRow(x []float64) ([]float64, error) {
	out, _, err := p.transform(x, math.NaN())
	return out, err
}

func (p *Pipeline) transform(x []float64, y float64) ([]float64, float64, error) {
	if err := p.RequireFitted("Pipeline", "TransformRow"); err != nil {
		return nil, 0, err
	}
	if len(x) != p.NInputs {
		return nil, 0, scigperrors.NewDimensionError("Pipeline.TransformRow", p.NInputs, len(x), 1)
	}
	cur := x
	for _, f := range p.stages() {
		var err error
		cur, y, err = f.TransformRow(cur, y)
		if err != nil {
			return nil, 0, err
		}
	}
	return cur, y, nil
}

// TargetTransform recovers the affine target map y' = Alin·y + Blin by
// pushing the witness row through the pipeline with targets 0 and 1.
// A non-invertible map (Alin = 0 or not finite) is a NumericalError.
func (p *Pipeline) TargetTransform() (alin, blin float64, err error) {
	if err := p.RequireFitted("Pipeline", "TargetTransform"); err != nil {
		return 0, 0, err
	}
	_, y0, err := p.transform(p.Witness, 0)
	if err != nil {
		return 0, 0, err
	}
	_, y1, err := p.transform(p.Witness, 1)
	if err != nil {
		return 0, 0, err
	}
	blin = y0
	alin = y1 - y0
	if alin == 0 || math.IsNaN(alin) || math.IsInf(alin, 0) || math.IsNaN(blin) || math.IsInf(blin, 0) {
		return 0, 0, scigperrors.NewNumericalError("Pipeline.TargetTransform",
			"target transform is not invertible", scigperrors.ErrDegenerateTransform)
	}
	return alin, blin, nil
}

// PipelineState is the numeric content of a fitted pipeline in a shape
// that survives JSON.
type PipelineState struct {
	Mode           FilterMode  `json:"mode"`
	NominalColumns map[int]int `json:"nominal_columns,omitempty"`
	NInputs        int         `json:"n_inputs"`
	Witness        []float64   `json:"witness"`
	Fill           []float64   `json:"fill"`
	Columns        []Affine    `json:"columns,omitempty"`
	Target         Affine      `json:"target"`
}

// Export returns the fitted pipeline as a PipelineState.
func (p *Pipeline) Export() (PipelineState, error) {
	if err := p.RequireFitted("Pipeline", "Export"); err != nil {
		return PipelineState{}, err
	}
	s := PipelineState{
		Mode:           p.Mode,
		NominalColumns: p.Nominal.Categories,
		NInputs:        p.NInputs,
		Witness:        append([]float64(nil), p.Witness...),
		Fill:           append([]float64(nil), p.Missing.Fill...),
	}
	switch sc := p.Scaler.(type) {
	case *Normalizer:
		s.Columns, s.Target = append([]Affine(nil), sc.Columns...), sc.Target
	case *Standardizer:
		s.Columns, s.Target = append([]Affine(nil), sc.Columns...), sc.Target
	}
	return s, nil
}

// RestorePipeline rebuilds a fitted pipeline from s.
func RestorePipeline(s PipelineState) (*Pipeline, error) {
	p, err := NewPipeline(PipelineConfig{Mode: s.Mode, NominalColumns: s.NominalColumns})
	if err != nil {
		return nil, err
	}
	if s.NInputs <= 0 || len(s.Witness) != s.NInputs || len(s.Fill) != s.NInputs {
		return nil, scigperrors.NewValidationError("pipeline", "inconsistent pipeline state", s.NInputs)
	}
	p.NInputs = s.NInputs
	p.Witness = append([]float64(nil), s.Witness...)
	p.Missing.Fill = append([]float64(nil), s.Fill...)
	p.Missing.SetFitted()
	if err := p.Nominal.Fit(mat.NewDense(1, s.NInputs, nil), nil, nil); err != nil {
		return nil, err
	}
	if p.Scaler != nil {
		if len(s.Columns) != p.Nominal.OutputWidth() {
			return nil, scigperrors.NewDimensionError("RestorePipeline", p.Nominal.OutputWidth(), len(s.Columns), 1)
		}
		cols := append([]Affine(nil), s.Columns...)
		switch sc := p.Scaler.(type) {
		case *Normalizer:
			sc.Columns, sc.Target = cols, s.Target
			sc.SetFitted()
		case *Standardizer:
			sc.Columns, sc.Target = cols, s.Target
			sc.SetFitted()
		}
	}
	p.SetFitted()
	return p, nil
}
