package gaussian_process

import (
	"math"

	"github.com/go-viper/mapstructure/v2"

	"github.com/YuminosukeSato/scigp/kernel"
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
	"github.com/YuminosukeSato/scigp/preprocessing"
)

// setParam applies one GetParams key. Values decoded from JSON or YAML
// arrive as float64 and map[string]interface{} and are accepted as well;
// nested maps are decoded with the same mapstructure tags viper uses.
func setParam(p *Params, key string, v interface{}) error {
	switch key {
	case "noise":
		f, err := toFloat(key, v)
		if err != nil {
			return err
		}
		p.Noise = f
	case "filter":
		switch fv := v.(type) {
		case preprocessing.FilterMode:
			p.Filter = fv
		case string:
			mode, err := preprocessing.ParseFilterMode(fv)
			if err != nil {
				return err
			}
			p.Filter = mode
		default:
			return typeError(key, v)
		}
	case "kernel":
		switch kv := v.(type) {
		case kernel.Config:
			p.Kernel = kv
		case map[string]interface{}:
			var cfg kernel.Config
			if err := decodeMap(key, kv, &cfg); err != nil {
				return err
			}
			p.Kernel = cfg
		default:
			return typeError(key, v)
		}
	case "nominal_columns":
		switch nv := v.(type) {
		case nil:
			p.NominalColumns = nil
		case map[int]int:
			p.NominalColumns = copyColumns(nv)
		case map[string]interface{}:
			var cols map[int]int
			if err := decodeMap(key, nv, &cols); err != nil {
				return err
			}
			p.NominalColumns = cols
		default:
			return typeError(key, v)
		}
	case "noise_retries":
		n, err := toInt(key, v)
		if err != nil {
			return err
		}
		p.NoiseRetries = n
	case "condition_threshold":
		f, err := toFloat(key, v)
		if err != nil {
			return err
		}
		p.ConditionThreshold = f
	case "parallel_threshold":
		n, err := toInt(key, v)
		if err != nil {
			return err
		}
		p.ParallelThreshold = n
	default:
		return scigperrors.NewConfigurationError(modelName, key, "unknown parameter", v)
	}
	return nil
}

func typeError(key string, v interface{}) error {
	return scigperrors.NewConfigurationError(modelName, key, "unsupported value type", v)
}

func toFloat(key string, v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, typeError(key, v)
	}
}

func toInt(key string, v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, scigperrors.NewConfigurationError(modelName, key, "must be an integer", v)
		}
		return int(n), nil
	default:
		return 0, typeError(key, v)
	}
}

func decodeMap(key string, in interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
		Result:           out,
	})
	if err != nil {
		return scigperrors.NewConfigurationError(modelName, key, err.Error(), in)
	}
	if err := dec.Decode(in); err != nil {
		return scigperrors.NewConfigurationError(modelName, key, err.Error(), in)
	}
	return nil
}
