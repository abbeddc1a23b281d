package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// MatrixData is a row-major dense matrix in a JSON friendly shape.
type MatrixData struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// NewMatrixData copies m.
func NewMatrixData(m mat.Matrix) *MatrixData {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data = append(data, m.At(i, j))
		}
	}
	return &MatrixData{Rows: r, Cols: c, Data: data}
}

// Dense returns a copy as a gonum matrix.
func (m *MatrixData) Dense() (*mat.Dense, error) {
	if m.Rows*m.Cols != len(m.Data) || m.Rows <= 0 || m.Cols <= 0 {
		return nil, errors.Newf("matrix data holds %d values for shape %dx%d", len(m.Data), m.Rows, m.Cols)
	}
	data := make([]float64, len(m.Data))
	copy(data, m.Data)
	return mat.NewDense(m.Rows, m.Cols, data), nil
}

// ModelWeights はモデルの学習結果を表す構造体（シリアライゼーション用）
//
// Numeric state is split into named scalars, vectors and matrices so that
// models with very different parameterisations share one container.
type ModelWeights struct {
	ModelType       string                 `json:"model_type"`
	Version         string                 `json:"version"`
	Hyperparameters map[string]interface{} `json:"hyperparameters"`
	Scalars         map[string]float64     `json:"scalars,omitempty"`
	Vectors         map[string][]float64   `json:"vectors,omitempty"`
	Matrices        map[string]*MatrixData `json:"matrices,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	IsFitted        bool                   `json:"is_fitted"`
	// Checksum is the hex sha256 of the numeric payload.
	Checksum string `json:"checksum,omitempty"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	return errors.Wrap(json.Unmarshal(data, mw), "failed to decode model weights")
}

// ComputeChecksum hashes scalars, vectors and matrices. encoding/json
// sorts map keys, so the digest does not depend on insertion order.
func (mw *ModelWeights) ComputeChecksum() (string, error) {
	payload := struct {
		Scalars  map[string]float64     `json:"s"`
		Vectors  map[string][]float64   `json:"v"`
		Matrices map[string]*MatrixData `json:"m"`
	}{mw.Scalars, mw.Vectors, mw.Matrices}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash model weights")
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// Seal stores the checksum of the current payload.
func (mw *ModelWeights) Seal() error {
	sum, err := mw.ComputeChecksum()
	if err != nil {
		return err
	}
	mw.Checksum = sum
	return nil
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.New("model_type is required")
	}
	if mw.Version == "" {
		return errors.New("version is required")
	}
	hasPayload := len(mw.Scalars)+len(mw.Vectors)+len(mw.Matrices) > 0
	if !mw.IsFitted && hasPayload {
		return errors.New("unfitted model should not carry fitted state")
	}
	if mw.IsFitted && !hasPayload {
		return errors.New("fitted model must carry fitted state")
	}
	if mw.Checksum != "" {
		sum, err := mw.ComputeChecksum()
		if err != nil {
			return err
		}
		if sum != mw.Checksum {
			return errors.New("checksum mismatch: weights may be corrupted")
		}
	}
	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Version:         mw.Version,
		IsFitted:        mw.IsFitted,
		Checksum:        mw.Checksum,
		Hyperparameters: make(map[string]interface{}, len(mw.Hyperparameters)),
		Scalars:         make(map[string]float64, len(mw.Scalars)),
		Vectors:         make(map[string][]float64, len(mw.Vectors)),
		Matrices:        make(map[string]*MatrixData, len(mw.Matrices)),
		Metadata:        make(map[string]interface{}, len(mw.Metadata)),
	}
	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Scalars {
		clone.Scalars[k] = v
	}
	for k, v := range mw.Vectors {
		clone.Vectors[k] = append([]float64(nil), v...)
	}
	for k, v := range mw.Matrices {
		clone.Matrices[k] = &MatrixData{Rows: v.Rows, Cols: v.Cols, Data: append([]float64(nil), v.Data...)}
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}
