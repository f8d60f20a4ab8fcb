package fit

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/tenure/internal/domain/design"
)

// coefficientsKey is the top-level key of a coefficient file.
const coefficientsKey = "coefficients"

// keyDelim never occurs in a column name, so names containing dots survive
// koanf's key flattening.
const keyDelim = "\x1f"

// FileFitter reads coefficients from a YAML or JSON file on every Fit, so a
// solver can rewrite the file between analyses.
//
// Two layouts are accepted:
//
//	coefficients:
//	  - {feature: monthly_charges, coef: 0.012}
//	  - {feature: contract_monthly, coef: 0.8}
//
//	coefficients:
//	  monthly_charges: 0.012
//	  contract_monthly: 0.8
type FileFitter struct {
	path string
}

// NewFileFitter returns a fitter backed by path. The parser is chosen by
// extension: .json uses JSON, anything else YAML.
func NewFileFitter(path string) FileFitter {
	return FileFitter{path: path}
}

// Path returns the coefficient file location.
func (f FileFitter) Path() string { return f.path }

// Fit loads the file and aligns it to the columns of m.
func (f FileFitter) Fit(ctx context.Context, m design.Matrix, durations []float64, events []bool) (design.Coefficients, error) {
	if err := checkInputs(ctx, m, durations, events); err != nil {
		return nil, err
	}
	values, err := LoadCoefficients(f.path)
	if err != nil {
		return nil, err
	}
	return design.CoefficientsFromMap(values, m.Columns())
}

// LoadCoefficients parses a coefficient file into a name to value mapping.
func LoadCoefficients(path string) (map[string]float64, error) {
	var parser koanf.Parser = yaml.Parser()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		parser = json.Parser()
	}

	k := koanf.New(keyDelim)
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadCoefficients, path, err)
	}
	if !k.Exists(coefficientsKey) {
		return nil, fmt.Errorf("%w: %s: missing %q", ErrLoadCoefficients, path, coefficientsKey)
	}

	out := make(map[string]float64)
	switch raw := k.Get(coefficientsKey).(type) {
	case []interface{}:
		for i, item := range raw {
			entry, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: entry %d is not a mapping", ErrLoadCoefficients, i)
			}
			name, _ := entry["feature"].(string)
			if name == "" {
				return nil, fmt.Errorf("%w: entry %d has no feature", ErrLoadCoefficients, i)
			}
			v, err := toFloat(entry["coef"])
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrLoadCoefficients, name, err)
			}
			if _, dup := out[name]; dup {
				return nil, fmt.Errorf("%w: %q listed twice", ErrLoadCoefficients, name)
			}
			out[name] = v
		}
	case map[string]interface{}:
		for name, item := range raw {
			v, err := toFloat(item)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrLoadCoefficients, name, err)
			}
			out[name] = v
		}
	default:
		return nil, fmt.Errorf("%w: %q must be a list or a mapping", ErrLoadCoefficients, coefficientsKey)
	}
	return out, nil
}

func toFloat(v interface{}) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, fmt.Errorf("coefficient %v is not a number", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, design.ErrInvalidCoefficient
	}
	return f, nil
}
