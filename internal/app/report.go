package service

import (
	"time"

	"github.com/okian/tenure/internal/domain/design"
	"github.com/okian/tenure/internal/domain/model"
	"github.com/okian/tenure/internal/domain/survival"
)

// ConcordanceNote describes how the concordance index of a report is computed.
const ConcordanceNote = "C-index computed with Harrell's C over comparable pairs"

// Report is the result of one survival analysis.
type Report struct {
	ID           string               `json:"id"`
	CreatedAt    time.Time            `json:"created_at"`
	N            int                  `json:"n"`
	Events       int                  `json:"events"`
	Concordance  survival.Index       `json:"concordance"`
	HazardRatios []design.HazardRatio `json:"hazard_ratios"`
	Overall      survival.Curve       `json:"overall"`
	Median       *float64             `json:"median_survival"`
	Strata       *Strata              `json:"strata,omitempty"`
	Transform    design.Transform     `json:"transform"`
	Note         string               `json:"note"`
}

// Summary returns the key-value form of r. The C-index is nil when undefined.
func (r Report) Summary() model.Summary {
	s := model.Summary{
		N:          r.N,
		Events:     r.Events,
		Comparable: r.Concordance.Comparable,
		Note:       r.Note,
	}
	if v, ok := r.Concordance.Float(); ok {
		s.CIndex = &v
	}
	return s
}
