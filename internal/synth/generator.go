// Package synth generates synthetic telco customer tables and replays them
// against a running tenure server.
package synth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidConfig is returned when a generation or load setting is out of range.
var ErrInvalidConfig = errors.New("invalid synth config")

// Categorical levels and their probabilities.
var (
	contracts       = []string{"Month-to-month", "One year", "Two year"}
	contractWeights = []float64{0.55, 0.25, 0.20}
	payments        = []string{"Electronic check", "Mailed check", "Bank transfer", "Credit card"}
	paymentWeights  = []float64{0.35, 0.20, 0.25, 0.20}
	internet        = []string{"Fiber", "DSL", "None"}
	internetWeights = []float64{0.50, 0.35, 0.15}
)

const (
	techSupportYes = 0.35
	seniorYes      = 0.18
	partnerYes     = 0.45
	dependentsYes  = 0.30

	firstCustomerID = 100000
	maxTenureMonths = 72
	maxCount        = 12
)

// Generate creates n customers from seed. Customer i depends only on seed and
// i, so the output does not change with the number of workers.
func Generate(ctx context.Context, n int, seed uint64, workers int) ([]Customer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: customers must be positive", ErrInvalidConfig)
	}
	if workers <= 0 {
		workers = 1
	}
	workers = min(workers, n)

	type result struct {
		index    int
		customer Customer
		err      error
	}
	results := make(chan result, n)

	per := n / workers
	for w := 0; w < workers; w++ {
		start := w * per
		end := start + per
		if w == workers-1 {
			end = n
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					results <- result{index: i, err: err}
					return
				}
				results <- result{index: i, customer: generateCustomer(seed, i)}
			}
		}(start, end)
	}

	customers := make([]Customer, n)
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("generation cancelled: %w", ctx.Err())
		case r := <-results:
			if r.err != nil {
				return nil, fmt.Errorf("customer %d: %w", r.index, r.err)
			}
			customers[r.index] = r.customer
		}
	}
	return customers, nil
}

func generateCustomer(seed uint64, i int) Customer {
	src := rand.NewPCG(seed, uint64(i))
	rng := rand.New(src)

	c := Customer{
		ID:              "C" + strconv.Itoa(firstCustomerID+i),
		Contract:        choose(contracts, contractWeights, src),
		PaymentMethod:   choose(payments, paymentWeights, src),
		InternetService: choose(internet, internetWeights, src),
		TechSupport:     yesNo(rng, techSupportYes),
		SeniorCitizen:   yesNo(rng, seniorYes),
		Partner:         yesNo(rng, partnerYes),
		Dependents:      yesNo(rng, dependentsYes),
		TenureMonths:    1 + rng.IntN(maxTenureMonths),
	}

	var fiber, none float64
	switch c.InternetService {
	case "Fiber":
		fiber = 1
	case "None":
		none = 1
	}

	base := clip(distuv.Normal{Mu: 70, Sigma: 25, Src: src}.Rand(), 18, 130)
	c.MonthlyCharges = round2(clip(base+15*fiber-20*none, 18, 160))

	usage := distuv.Gamma{Alpha: 2, Beta: 1.0 / 8, Src: src}.Rand()
	c.AvgUsageGB = round2(clip(usage+12*fiber-8*none, 0, 200))

	ticketRate := 1.1
	if c.TechSupport == "No" {
		ticketRate += 0.6
	}
	c.SupportTickets = int(clip(distuv.Poisson{Lambda: ticketRate, Src: src}.Rand(), 0, maxCount))

	lateRate := 0.9
	if c.PaymentMethod == "Electronic check" {
		lateRate += 0.7
	}
	c.LatePayments = int(clip(distuv.Poisson{Lambda: lateRate, Src: src}.Rand(), 0, maxCount))

	c.Churn = rng.Float64() < sigmoid(churnScore(c))
	return c
}

// churnScore is the log-odds of churn for c.
func churnScore(c Customer) float64 {
	var s float64
	switch c.Contract {
	case "Month-to-month":
		s += 1.1
	case "One year":
		s -= 0.6
	case "Two year":
		s -= 1.0
	}
	if c.PaymentMethod == "Electronic check" {
		s += 0.6
	}
	if c.InternetService == "Fiber" {
		s += 0.3
	}
	if c.TechSupport == "Yes" {
		s -= 0.8
	}
	if c.SeniorCitizen == "Yes" {
		s += 0.15
	}
	s += 0.08 * float64(c.SupportTickets)
	s += 0.10 * float64(c.LatePayments)
	s -= 0.035 * float64(c.TenureMonths)
	return s
}

func choose(levels []string, weights []float64, src rand.Source) string {
	return levels[int(distuv.NewCategorical(weights, src).Rand())]
}

func yesNo(rng *rand.Rand, p float64) string {
	if rng.Float64() < p {
		return "Yes"
	}
	return "No"
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clip(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
