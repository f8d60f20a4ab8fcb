// Package report writes analysis results as CSV and JSON files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	service "github.com/okian/tenure/internal/app"
	"github.com/okian/tenure/internal/domain/design"
	"github.com/okian/tenure/internal/domain/model"
	"github.com/okian/tenure/internal/domain/survival"
)

// File names written by WriteDir.
const (
	HazardRatiosFile = "hazard_ratios.csv"
	SummaryFile      = "summary.json"
	OverallCurveFile = "km_overall.csv"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// StrataCurveFile returns the file name of the curves stratified by by.
func StrataCurveFile(by string) string {
	return "km_by_" + unsafeName.ReplaceAllString(by, "_") + ".csv"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteHazardRatios writes the hazard ratio table in the given order.
func WriteHazardRatios(w io.Writer, hrs []design.HazardRatio) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"feature", "coef", "hazard_ratio"}); err != nil {
		return err
	}
	for _, hr := range hrs {
		if err := writer.Write([]string{hr.Feature, formatFloat(hr.Coef), formatFloat(hr.HazardRatio)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSummary writes the key-value summary as indented JSON.
func WriteSummary(w io.Writer, s model.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

var curveHeader = []string{"time", "survival", "at_risk", "events", "censored"}

func curveRow(p survival.Point) []string {
	return []string{
		formatFloat(p.Time),
		formatFloat(p.Survival),
		strconv.Itoa(p.AtRisk),
		strconv.Itoa(p.Events),
		strconv.Itoa(p.Censored),
	}
}

// WriteCurve writes the points of c, one per row.
func WriteCurve(w io.Writer, c survival.Curve) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(curveHeader); err != nil {
		return err
	}
	for _, p := range c.Points() {
		if err := writer.Write(curveRow(p)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteStrata writes the stratum curves in long form, prefixed by the
// stratum value.
func WriteStrata(w io.Writer, st service.Strata) error {
	writer := csv.NewWriter(w)
	by := st.By
	if by == "" {
		by = "stratum"
	}
	if err := writer.Write(append([]string{by}, curveHeader...)); err != nil {
		return err
	}
	for _, g := range st.Groups {
		for _, p := range g.Curve.Points() {
			if err := writer.Write(append([]string{g.Value}, curveRow(p)...)); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

type reportFile struct {
	name  string
	write func(io.Writer) error
}

// WriteDir writes every report file of rep into dir and returns their paths.
func WriteDir(dir string, rep service.Report) ([]string, error) { //nolint:gocritic // hugeParam: Report is read only
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	files := []reportFile{
		{HazardRatiosFile, func(w io.Writer) error { return WriteHazardRatios(w, rep.HazardRatios) }},
		{SummaryFile, func(w io.Writer) error { return WriteSummary(w, rep.Summary()) }},
		{OverallCurveFile, func(w io.Writer) error { return WriteCurve(w, rep.Overall) }},
	}
	if rep.Strata != nil {
		st := *rep.Strata
		files = append(files, reportFile{StrataCurveFile(st.By), func(w io.Writer) error { return WriteStrata(w, st) }})
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeFile(path, f.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
