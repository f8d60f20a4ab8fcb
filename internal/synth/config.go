package synth

import "time"

// Config holds configuration for generation and load runs.
type Config struct {
	Customers int    // Customers per dataset
	Seed      uint64 // Seed of the first dataset; dataset k uses Seed+k
	Workers   int    // Generation and submission goroutines

	BaseURL      string        // Base URL of the service
	Analyses     int           // Datasets to submit
	Timeout      time.Duration // HTTP request timeout
	PollInterval time.Duration // Delay between job status checks
	Wait         time.Duration // Upper bound on waiting for submitted jobs
	Strata       string        // Stratification column sent with each submission
}

// DefaultConfig returns the settings used by the synth command.
func DefaultConfig() Config {
	return Config{
		Customers:    3000,
		Seed:         42,
		Workers:      4,
		BaseURL:      "http://localhost:9080",
		Analyses:     10,
		Timeout:      30 * time.Second,
		PollInterval: 250 * time.Millisecond,
		Wait:         2 * time.Minute,
		Strata:       "contract",
	}
}

// Customer is one synthetic telco subscriber.
type Customer struct {
	ID              string
	TenureMonths    int
	MonthlyCharges  float64
	AvgUsageGB      float64
	SupportTickets  int
	LatePayments    int
	Contract        string
	PaymentMethod   string
	InternetService string
	TechSupport     string
	SeniorCitizen   string
	Partner         string
	Dependents      string
	Churn           bool
}

// Stats holds load run statistics.
type Stats struct {
	Generated int
	Submitted int
	Accepted  int
	Rejected  int
	Done      int
	Failed    int
	Pending   int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}
