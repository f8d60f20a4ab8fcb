package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/tenure/internal/adapters/dataset"
	"github.com/okian/tenure/internal/adapters/report"
	service "github.com/okian/tenure/internal/app"
	"github.com/okian/tenure/internal/domain/model"
	"github.com/okian/tenure/internal/domain/survival"
	"github.com/okian/tenure/pkg/logger"
)

// IdempotencyHeader lets clients retry a submission without creating a
// second job.
const IdempotencyHeader = "Idempotency-Key"

// observationRequest is one subject of a JSON submission. A null numeric
// value is a missing value.
type observationRequest struct {
	ID          string              `json:"id"`
	Duration    *float64            `json:"duration"`
	Event       *bool               `json:"event"`
	Numeric     map[string]*float64 `json:"numeric"`
	Categorical map[string]string   `json:"categorical"`
}

// analysisRequest is the JSON body of POST /analyses.
type analysisRequest struct {
	Observations []observationRequest `json:"observations"`
	Numeric      []string             `json:"numeric_features"`
	Categorical  []string             `json:"categorical_features"`
	Strata       *string              `json:"strata"`
	Coefficients map[string]float64   `json:"coefficients"`
}

func (req analysisRequest) dataset(defaults options) (model.Dataset, error) {
	ds := model.Dataset{
		Observations: make([]model.Observation, len(req.Observations)),
		Numeric:      req.Numeric,
		Categorical:  req.Categorical,
		Strata:       defaults.strata,
	}
	if len(ds.Numeric) == 0 && len(ds.Categorical) == 0 {
		ds.Numeric = defaults.schema.Numeric
		ds.Categorical = defaults.schema.Categorical
	}
	if req.Strata != nil {
		ds.Strata = *req.Strata
	}

	for i, o := range req.Observations {
		switch {
		case o.Duration == nil:
			return model.Dataset{}, fmt.Errorf("observation %d: missing duration", i)
		case o.Event == nil:
			return model.Dataset{}, fmt.Errorf("observation %d: missing event", i)
		case math.IsNaN(*o.Duration) || math.IsInf(*o.Duration, 0) || *o.Duration < 0:
			return model.Dataset{}, fmt.Errorf("observation %d: %w", i, dataset.ErrInvalidDuration)
		}

		numeric := make(map[string]float64, len(o.Numeric))
		for k, v := range o.Numeric {
			if v == nil {
				numeric[k] = math.NaN()
				continue
			}
			numeric[k] = *v
		}
		ds.Observations[i] = model.Observation{
			ID:          o.ID,
			Duration:    *o.Duration,
			Event:       *o.Event,
			Numeric:     numeric,
			Categorical: o.Categorical,
		}
	}
	return ds, nil
}

type submitResponse struct {
	ID     string          `json:"id"`
	Status model.JobStatus `json:"status"`
}

type analysisResponse struct {
	model.Job
	Report *service.Report `json:"report,omitempty"`
}

type curvesResponse struct {
	Overall survival.Curve  `json:"overall"`
	Median  *float64        `json:"median_survival"`
	Strata  *service.Strata `json:"strata,omitempty"`
}

// AnalysesHandler handles analysis job requests.
type AnalysesHandler struct {
	deps Dependencies
	opts options
	log  logger.Logger
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(deps Dependencies, o options) *AnalysesHandler {
	return &AnalysesHandler{deps: deps, opts: o, log: o.logger.Named("api")}
}

// HandleSubmit handles POST /analyses requests. The body is either a JSON
// analysisRequest or a CSV table read with the configured schema.
func (h *AnalysesHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_analysis"

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.maxBodyBytes)
	sub, err := h.decode(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, WrapKind(op, ErrTooLarge, err))
			return
		}
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	sub.IdempotencyKey = strings.TrimSpace(r.Header.Get(IdempotencyHeader))

	job, err := h.deps.Submit(r.Context(), sub)
	if err != nil {
		h.log.Warn(r.Context(), "submission rejected", logger.Error(err))
		writeError(w, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/analyses/"+job.ID)
	writeJSON(w, http.StatusAccepted, submitResponse{ID: job.ID, Status: job.Status})
}

func (h *AnalysesHandler) decode(r *http.Request) (service.Submission, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		obs, err := dataset.Load(r.Body, h.opts.schema)
		if err != nil {
			return service.Submission{}, err
		}
		strata := h.opts.strata
		if q := r.URL.Query(); q.Has("strata") {
			strata = q.Get("strata")
		}
		return service.Submission{Dataset: h.opts.schema.Dataset(obs, strata)}, nil
	}

	var req analysisRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return service.Submission{}, err
	}
	ds, err := req.dataset(h.opts)
	if err != nil {
		return service.Submission{}, err
	}
	return service.Submission{Dataset: ds, Coefficients: req.Coefficients}, nil
}

// HandleList handles GET /analyses?limit=N requests.
func (h *AnalysesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_analyses"

	n := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		var err error
		if n, err = strconv.Atoi(s); err != nil || n < 1 {
			writeError(w, NewKind(op, ErrBadRequest))
			return
		}
	}
	if n > h.opts.maxListLimit {
		writeError(w, WrapKind(op, ErrBadRequest, fmt.Errorf("limit exceeds %d", h.opts.maxListLimit)))
		return
	}

	jobs, err := h.deps.ListJobs(r.Context(), n)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// HandleGet handles GET /analyses/{id} requests.
func (h *AnalysesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_analysis"

	job, err := h.deps.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}

	resp := analysisResponse{Job: job}
	if job.Status == model.JobDone {
		rep, err := h.deps.GetReport(r.Context(), job.ID)
		if err != nil {
			writeError(w, Wrap(op, err))
			return
		}
		resp.Report = &rep
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHazardRatios handles GET /analyses/{id}/hazard_ratios requests with
// the hazard ratio table as CSV.
func (h *AnalysesHandler) HandleHazardRatios(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_hazard_ratios"

	rep, err := h.deps.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	if err := report.WriteHazardRatios(w, rep.HazardRatios); err != nil {
		h.log.Error(r.Context(), "failed to write hazard ratios", logger.Error(err))
	}
}

// HandleCurves handles GET /analyses/{id}/curves requests. format=csv returns
// the stratum curves, or the overall curve when the analysis has no strata.
func (h *AnalysesHandler) HandleCurves(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_curves"

	rep, err := h.deps.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}

	if r.URL.Query().Get("format") != "csv" {
		writeJSON(w, http.StatusOK, curvesResponse{Overall: rep.Overall, Median: rep.Median, Strata: rep.Strata})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	if rep.Strata != nil {
		err = report.WriteStrata(w, *rep.Strata)
	} else {
		err = report.WriteCurve(w, rep.Overall)
	}
	if err != nil {
		h.log.Error(r.Context(), "failed to write curves", logger.Error(err))
	}
}
