package synth

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Columns is the header written by WriteCSV. It matches the default schema
// of the tenure config.
var Columns = []string{
	"customer_id",
	"tenure_months",
	"monthly_charges",
	"avg_monthly_usage_gb",
	"support_tickets_90d",
	"late_payments_12m",
	"contract",
	"payment_method",
	"internet_service",
	"tech_support",
	"senior_citizen",
	"partner",
	"dependents",
	"churn",
}

// WriteCSV writes customers as a table with a header row.
func WriteCSV(w io.Writer, customers []Customer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for i := range customers {
		if err := cw.Write(customers[i].record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes customers to path, creating its directory.
func WriteFile(path string, customers []Customer) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteCSV(f, customers)
}

func encode(customers []Customer) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, customers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Customer) record() []string {
	churn := "0"
	if c.Churn {
		churn = "1"
	}
	return []string{
		c.ID,
		strconv.Itoa(c.TenureMonths),
		strconv.FormatFloat(c.MonthlyCharges, 'f', 2, 64),
		strconv.FormatFloat(c.AvgUsageGB, 'f', 2, 64),
		strconv.Itoa(c.SupportTickets),
		strconv.Itoa(c.LatePayments),
		c.Contract,
		c.PaymentMethod,
		c.InternetService,
		c.TechSupport,
		c.SeniorCitizen,
		c.Partner,
		c.Dependents,
		churn,
	}
}
