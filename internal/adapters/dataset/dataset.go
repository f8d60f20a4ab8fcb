// Package dataset reads customer tables into survival observations.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/okian/tenure/internal/domain/model"
)

// Schema names the columns of a customer table.
type Schema struct {
	DurationCol string
	EventCol    string
	IDCol       string // optional
	Numeric     []string
	Categorical []string
	// Extra columns are carried as categorical covariates without entering
	// the design matrix, e.g. a stratum that is not a model feature.
	Extra []string
}

// Dataset returns the model dataset of obs under s, stratified by strata.
func (s Schema) Dataset(obs []model.Observation, strata string) model.Dataset {
	return model.Dataset{
		Observations: obs,
		Numeric:      append([]string(nil), s.Numeric...),
		Categorical:  append([]string(nil), s.Categorical...),
		Strata:       strata,
	}
}

// missing lists the cell values read as a missing covariate.
var missing = map[string]bool{
	"": true, "NA": true, "N/A": true, "NaN": true, "nan": true, "null": true, "NULL": true,
}

// IsMissing reports whether a raw cell holds no value.
func IsMissing(cell string) bool {
	return missing[strings.TrimSpace(cell)]
}

// LoadFile reads the CSV file at path.
func LoadFile(path string, s Schema) ([]model.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	obs, err := Load(f, s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obs, nil
}

// Load reads a CSV table with a header row. Every row becomes one
// observation; the duration and event columns are required on every row.
func Load(r io.Reader, s Schema) ([]model.Observation, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[strings.TrimSpace(col)] = i
	}

	index := func(name string) (int, error) {
		i, ok := colIndex[name]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		return i, nil
	}

	durationIdx, err := index(s.DurationCol)
	if err != nil {
		return nil, err
	}
	eventIdx, err := index(s.EventCol)
	if err != nil {
		return nil, err
	}
	idIdx := -1
	if s.IDCol != "" {
		if i, ok := colIndex[s.IDCol]; ok {
			idIdx = i
		}
	}

	numericIdx := make([]int, len(s.Numeric))
	for k, name := range s.Numeric {
		if numericIdx[k], err = index(name); err != nil {
			return nil, err
		}
	}
	categorical := append(append([]string(nil), s.Categorical...), s.Extra...)
	categoricalIdx := make([]int, len(categorical))
	for k, name := range categorical {
		if categoricalIdx[k], err = index(name); err != nil {
			return nil, err
		}
	}

	var obs []model.Observation
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		o := model.Observation{
			Numeric:     make(map[string]float64, len(s.Numeric)),
			Categorical: make(map[string]string, len(categorical)),
		}
		if idIdx >= 0 {
			o.ID = strings.TrimSpace(record[idIdx])
		}

		if o.Duration, err = ParseDuration(record[durationIdx]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if o.Event, err = ParseEvent(record[eventIdx]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		for k, name := range s.Numeric {
			v, err := ParseNumber(record[numericIdx[k]])
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
			o.Numeric[name] = v
		}
		for k, name := range categorical {
			cell := record[categoricalIdx[k]]
			if IsMissing(cell) {
				cell = ""
			}
			o.Categorical[name] = strings.TrimSpace(cell)
		}

		obs = append(obs, o)
	}

	if len(obs) == 0 {
		return nil, ErrNoRows
	}
	return obs, nil
}

// ParseDuration parses a finite, non-negative duration.
func ParseDuration(cell string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, cell)
	}
	return v, nil
}

// ParseEvent parses an event flag: 1/0, true/false or yes/no.
func ParseEvent(cell string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "1", "1.0", "true", "t", "yes", "y":
		return true, nil
	case "0", "0.0", "false", "f", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidEvent, cell)
}

// ParseNumber parses a numeric covariate. Missing cells give NaN.
func ParseNumber(cell string) (float64, error) {
	if IsMissing(cell) {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, cell)
	}
	return v, nil
}
