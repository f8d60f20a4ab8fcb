package synth

// Feature columns sent with every load submission.
var (
	NumericFeatures = []string{
		"tenure_months",
		"monthly_charges",
		"avg_monthly_usage_gb",
		"support_tickets_90d",
		"late_payments_12m",
	}
	CategoricalFeatures = []string{
		"contract",
		"payment_method",
		"internet_service",
		"tech_support",
		"senior_citizen",
		"partner",
		"dependents",
	}
)

// churnWeights are the log-odds weights the generator draws churn from, keyed
// by design column. Columns absent here weigh zero.
var churnWeights = map[string]float64{
	"tenure_months":                   -0.035,
	"support_tickets_90d":             0.08,
	"late_payments_12m":               0.10,
	"contract_Month-to-month":         1.1,
	"contract_One year":               -0.6,
	"contract_Two year":               -1.0,
	"payment_method_Electronic check": 0.6,
	"internet_service_Fiber":          0.3,
	"tech_support_Yes":                -0.8,
	"senior_citizen_Yes":              0.15,
}

// Coefficients returns the generating weights for every design column of
// customers: one per numeric feature and one per observed category.
func Coefficients(customers []Customer) map[string]float64 {
	out := make(map[string]float64, len(churnWeights)+len(NumericFeatures))
	for _, name := range NumericFeatures {
		out[name] = churnWeights[name]
	}
	for i := range customers {
		for feature, level := range customers[i].categorical() {
			col := feature + "_" + level
			out[col] = churnWeights[col]
		}
	}
	return out
}

type observationPayload struct {
	ID          string             `json:"id"`
	Duration    float64            `json:"duration"`
	Event       bool               `json:"event"`
	Numeric     map[string]float64 `json:"numeric"`
	Categorical map[string]string  `json:"categorical"`
}

// analysisPayload is the JSON body of POST /analyses.
type analysisPayload struct {
	Observations []observationPayload `json:"observations"`
	Numeric      []string             `json:"numeric_features"`
	Categorical  []string             `json:"categorical_features"`
	Strata       *string              `json:"strata"`
	Coefficients map[string]float64   `json:"coefficients"`
}

func newPayload(customers []Customer, strata string) analysisPayload {
	p := analysisPayload{
		Observations: make([]observationPayload, len(customers)),
		Numeric:      NumericFeatures,
		Categorical:  CategoricalFeatures,
		Strata:       &strata,
		Coefficients: Coefficients(customers),
	}
	for i := range customers {
		c := &customers[i]
		p.Observations[i] = observationPayload{
			ID:          c.ID,
			Duration:    float64(c.TenureMonths),
			Event:       c.Churn,
			Numeric:     c.numeric(),
			Categorical: c.categorical(),
		}
	}
	return p
}

func (c *Customer) numeric() map[string]float64 {
	return map[string]float64{
		"tenure_months":        float64(c.TenureMonths),
		"monthly_charges":      c.MonthlyCharges,
		"avg_monthly_usage_gb": c.AvgUsageGB,
		"support_tickets_90d":  float64(c.SupportTickets),
		"late_payments_12m":    float64(c.LatePayments),
	}
}

func (c *Customer) categorical() map[string]string {
	return map[string]string{
		"contract":         c.Contract,
		"payment_method":   c.PaymentMethod,
		"internet_service": c.InternetService,
		"tech_support":     c.TechSupport,
		"senior_citizen":   c.SeniorCitizen,
		"partner":          c.Partner,
		"dependents":       c.Dependents,
	}
}
