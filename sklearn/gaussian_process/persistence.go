package gaussian_process

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigp/core/model"
	"github.com/YuminosukeSato/scigp/kernel"
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
	"github.com/YuminosukeSato/scigp/preprocessing"
)

// snapshot is the persisted form of a fittedModel. The kernel is stored
// as its Config and rebuilt on load; the squared noise is recomputed.
type snapshot struct {
	Version   string
	Params    Params
	NSamples  int
	NFeatures int
	Dropped   int
	Weights   []float64
	Rows      *model.MatrixData
	Inverse   *model.MatrixData
	Alpha     []float64
	Noise     float64
	AvgTarget float64
	Alin      float64
	Blin      float64
	Condition float64
	Kernel    kernel.Config
	Pipeline  preprocessing.PipelineState
}

func (m *fittedModel) snapshot() (*snapshot, error) {
	ps, err := m.pipeline.Export()
	if err != nil {
		return nil, err
	}
	rows := mat.NewDense(len(m.rows), len(m.rows[0]), nil)
	for i, row := range m.rows {
		rows.SetRow(i, row)
	}
	return &snapshot{
		Version:   modelVersion,
		Params:    m.params.clone(),
		NSamples:  m.nSamples,
		NFeatures: m.nFeatures,
		Dropped:   m.dropped,
		Weights:   append([]float64(nil), m.weights...),
		Rows:      model.NewMatrixData(rows),
		Inverse:   model.NewMatrixData(m.inverse),
		Alpha:     append([]float64(nil), m.alpha.RawVector().Data...),
		Noise:     m.noise,
		AvgTarget: m.avgTarget,
		Alin:      m.alin,
		Blin:      m.blin,
		Condition: m.condition,
		Kernel:    m.kernelConfig,
		Pipeline:  ps,
	}, nil
}

// restore validates s and rebuilds the runtime model.
func (s *snapshot) restore() (*fittedModel, error) {
	if s.Version != modelVersion {
		return nil, errors.Newf("unsupported model version %q", s.Version)
	}
	if s.Rows == nil || s.Inverse == nil {
		return nil, errors.New("model snapshot has no training rows or inverse")
	}
	rows, err := s.Rows.Dense()
	if err != nil {
		return nil, err
	}
	inv, err := s.Inverse.Dense()
	if err != nil {
		return nil, err
	}
	n := s.NSamples
	if r, _ := rows.Dims(); r != n {
		return nil, scigperrors.NewDimensionError("GaussianProcessRegressor.Load", n, r, 0)
	}
	if r, c := inv.Dims(); r != n || c != n {
		return nil, scigperrors.NewDimensionError("GaussianProcessRegressor.Load", n, r, 0)
	}
	if len(s.Weights) != n || len(s.Alpha) != n {
		return nil, scigperrors.NewDimensionError("GaussianProcessRegressor.Load", n, len(s.Alpha), 0)
	}
	if s.Alin == 0 {
		return nil, scigperrors.NewNumericalError("GaussianProcessRegressor.Load", "target transform is not invertible", scigperrors.ErrDegenerateTransform)
	}

	kern, err := kernel.New(s.Kernel)
	if err != nil {
		return nil, err
	}
	pipeline, err := preprocessing.RestorePipeline(s.Pipeline)
	if err != nil {
		return nil, err
	}
	if pipeline.NInputs != s.NFeatures {
		return nil, scigperrors.NewDimensionError("GaussianProcessRegressor.Load", s.NFeatures, pipeline.NInputs, 1)
	}

	trainRows := make([][]float64, n)
	for i := range trainRows {
		trainRows[i] = rows.RawRowView(i)
	}
	inverse := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			inverse.SetSym(i, j, inv.At(i, j))
		}
	}

	return &fittedModel{
		params:       s.Params.clone(),
		nSamples:     n,
		nFeatures:    s.NFeatures,
		dropped:      s.Dropped,
		weights:      append([]float64(nil), s.Weights...),
		rows:         trainRows,
		inverse:      inverse,
		alpha:        mat.NewVecDense(n, append([]float64(nil), s.Alpha...)),
		noise:        s.Noise,
		avgTarget:    s.AvgTarget,
		alin:         s.Alin,
		blin:         s.Blin,
		condition:    s.Condition,
		kernelConfig: kern.Config(),
		pipeline:     pipeline,
		eval:         kernel.NewEvaluator(kern, trainRows),
	}, nil
}

// install publishes a restored model and adopts its hyperparameters.
func (gp *GaussianProcessRegressor) install(s *snapshot) error {
	m, err := s.restore()
	if err != nil {
		return err
	}
	gp.mu.Lock()
	gp.params = m.params.clone()
	gp.mu.Unlock()
	gp.state.Publish(m)
	return nil
}

func (gp *GaussianProcessRegressor) currentSnapshot(method string) (*snapshot, error) {
	m, err := gp.state.Require(modelName, method)
	if err != nil {
		return nil, err
	}
	return m.snapshot()
}

// SaveTo はモデルをgob形式でio.Writerに書き込む
func (gp *GaussianProcessRegressor) SaveTo(w io.Writer) error {
	s, err := gp.currentSnapshot("SaveTo")
	if err != nil {
		return err
	}
	return model.SaveModelToWriter(s, w)
}

// LoadFrom はio.Readerからモデルを読み込む
func (gp *GaussianProcessRegressor) LoadFrom(r io.Reader) error {
	var s snapshot
	if err := model.LoadModelFromReader(&s, r); err != nil {
		return err
	}
	return gp.install(&s)
}

// Save はモデルをファイルに保存する
func (gp *GaussianProcessRegressor) Save(path string) error {
	s, err := gp.currentSnapshot("Save")
	if err != nil {
		return err
	}
	return model.SaveModel(s, path)
}

// Load はファイルからモデルを読み込む
func (gp *GaussianProcessRegressor) Load(path string) error {
	var s snapshot
	if err := model.LoadModel(&s, path); err != nil {
		return err
	}
	return gp.install(&s)
}

// Keys of the exported weight container.
const (
	scalarNoise       = "noise"
	scalarAvgTarget   = "avg_target"
	scalarAlin        = "alin"
	scalarBlin        = "blin"
	scalarCondition   = "condition_number"
	scalarTargetShift = "pipeline.target_shift"
	scalarTargetScale = "pipeline.target_scale"

	vectorWeights = "weights"
	vectorAlpha   = "alpha"
	vectorWitness = "pipeline.witness"
	vectorFill    = "pipeline.fill"
	vectorShift   = "pipeline.shift"
	vectorScale   = "pipeline.scale"

	matrixInverse = "inverse_covariance"
	matrixRows    = "training_rows"
)

// ExportWeights はモデルの重みをエクスポート（完全な再現性を保証）
//
// The numeric state is covered by a sha256 checksum that ImportWeights
// verifies. The kernel and preprocessing layout are stored in Metadata.
func (gp *GaussianProcessRegressor) ExportWeights() (*model.ModelWeights, error) {
	s, err := gp.currentSnapshot("ExportWeights")
	if err != nil {
		return nil, err
	}
	kernelJSON, err := json.Marshal(s.Kernel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode kernel config")
	}
	nominalJSON, err := json.Marshal(s.Pipeline.NominalColumns)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode nominal columns")
	}

	shift := make([]float64, len(s.Pipeline.Columns))
	scale := make([]float64, len(s.Pipeline.Columns))
	for i, a := range s.Pipeline.Columns {
		shift[i], scale[i] = a.Shift, a.Scale
	}

	w := &model.ModelWeights{
		ModelType:       modelName,
		Version:         modelVersion,
		Hyperparameters: paramsMap(s.Params),
		IsFitted:        true,
		Scalars: map[string]float64{
			scalarNoise:       s.Noise,
			scalarAvgTarget:   s.AvgTarget,
			scalarAlin:        s.Alin,
			scalarBlin:        s.Blin,
			scalarCondition:   s.Condition,
			scalarTargetShift: s.Pipeline.Target.Shift,
			scalarTargetScale: s.Pipeline.Target.Scale,
		},
		Vectors: map[string][]float64{
			vectorWeights: s.Weights,
			vectorAlpha:   s.Alpha,
			vectorWitness: s.Pipeline.Witness,
			vectorFill:    s.Pipeline.Fill,
			vectorShift:   shift,
			vectorScale:   scale,
		},
		Matrices: map[string]*model.MatrixData{
			matrixInverse: s.Inverse,
			matrixRows:    s.Rows,
		},
		Metadata: map[string]interface{}{
			"n_features":      s.NFeatures,
			"n_samples":       s.NSamples,
			"dropped":         s.Dropped,
			"kernel":          string(kernelJSON),
			"filter":          s.Pipeline.Mode.String(),
			"nominal_columns": string(nominalJSON),
		},
	}
	if err := w.Seal(); err != nil {
		return nil, err
	}
	return w, nil
}

// ImportWeights はモデルの重みをインポート
func (gp *GaussianProcessRegressor) ImportWeights(w *model.ModelWeights) error {
	if w == nil {
		return scigperrors.NewValueError("GaussianProcessRegressor.ImportWeights", "weights cannot be nil")
	}
	if w.ModelType != modelName {
		return errors.Newf("model type mismatch: expected %s, got %s", modelName, w.ModelType)
	}
	if err := w.Validate(); err != nil {
		return err
	}
	if !w.IsFitted {
		return scigperrors.NewNotFittedError(modelName, "ImportWeights")
	}

	p := defaultParams()
	for key, v := range w.Hyperparameters {
		if err := setParam(&p, key, v); err != nil {
			return err
		}
	}

	s := &snapshot{
		Version:   w.Version,
		Params:    p,
		Weights:   w.Vectors[vectorWeights],
		Alpha:     w.Vectors[vectorAlpha],
		Rows:      w.Matrices[matrixRows],
		Inverse:   w.Matrices[matrixInverse],
		Noise:     w.Scalars[scalarNoise],
		AvgTarget: w.Scalars[scalarAvgTarget],
		Alin:      w.Scalars[scalarAlin],
		Blin:      w.Scalars[scalarBlin],
		Condition: w.Scalars[scalarCondition],
	}
	var err error
	if s.NFeatures, err = metaInt(w.Metadata, "n_features"); err != nil {
		return err
	}
	if s.NSamples, err = metaInt(w.Metadata, "n_samples"); err != nil {
		return err
	}
	s.Dropped, _ = metaInt(w.Metadata, "dropped")

	if err := metaJSON(w.Metadata, "kernel", &s.Kernel); err != nil {
		return err
	}
	ps := preprocessing.PipelineState{
		NInputs: s.NFeatures,
		Witness: w.Vectors[vectorWitness],
		Fill:    w.Vectors[vectorFill],
		Target:  preprocessing.Affine{Shift: w.Scalars[scalarTargetShift], Scale: w.Scalars[scalarTargetScale]},
	}
	filter, _ := w.Metadata["filter"].(string)
	if ps.Mode, err = preprocessing.ParseFilterMode(filter); err != nil {
		return err
	}
	if err := metaJSON(w.Metadata, "nominal_columns", &ps.NominalColumns); err != nil {
		return err
	}
	shift, scale := w.Vectors[vectorShift], w.Vectors[vectorScale]
	if len(shift) != len(scale) {
		return scigperrors.NewDimensionError("GaussianProcessRegressor.ImportWeights", len(shift), len(scale), 1)
	}
	for i := range shift {
		ps.Columns = append(ps.Columns, preprocessing.Affine{Shift: shift[i], Scale: scale[i]})
	}
	s.Pipeline = ps

	return gp.install(s)
}

func metaInt(meta map[string]interface{}, key string) (int, error) {
	switch v := meta[key].(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, errors.Newf("metadata %q is missing or not a number", key)
	}
}

func metaJSON(meta map[string]interface{}, key string, out interface{}) error {
	raw, ok := meta[key].(string)
	if !ok {
		return errors.Newf("metadata %q is missing", key)
	}
	return errors.Wrapf(json.Unmarshal([]byte(raw), out), "failed to decode metadata %q", key)
}
