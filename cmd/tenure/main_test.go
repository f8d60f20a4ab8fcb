package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

const telco = `customer_id,tenure_months,churn,monthly_charges,contract,risk
C1,1,1,80,monthly,3
C2,2,0,,annual,2
C3,3,1,40,monthly,1
C4,5,0,60,annual,0.5
`

const tenureConfig = `
numeric_features: [monthly_charges]
categorical_features: [contract]
strata_col: contract
log_level: error
`

const coefficients = `
coefficients:
  - feature: monthly_charges
    coef: 0.01
  - feature: contract_annual
    coef: -0.5
  - feature: contract_monthly
    coef: 0.5
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	convey.Convey("Given a customer table and a config", t, func() {
		dir := t.TempDir()
		input := writeFile(t, dir, "telco.csv", telco)
		t.Setenv("TENURE_CONFIG", writeFile(t, dir, "tenure.yaml", tenureConfig))

		convey.Convey("When the concordance of the risk column is computed", func() {
			out, err := execute("concordance", "--input", input, "--risk", "risk", "--pairwise", "2")
			convey.So(err, convey.ShouldBeNil)

			var got struct {
				N           int `json:"n"`
				Concordance struct {
					Value      float64 `json:"value"`
					Comparable int64   `json:"comparable"`
				} `json:"concordance"`
			}
			convey.So(json.Unmarshal([]byte(out), &got), convey.ShouldBeNil)
			convey.So(got.N, convey.ShouldEqual, 4)
			convey.So(got.Concordance.Comparable, convey.ShouldEqual, int64(4))
			convey.So(got.Concordance.Value, convey.ShouldEqual, 1.0)
		})

		convey.Convey("When the overall curve is printed", func() {
			out, err := execute("curve", "-i", input)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldStartWith, "time,survival,at_risk,events,censored\n0,1,4,0,0\n1,0.75,4,1,0\n")
		})

		convey.Convey("When curves are stratified", func() {
			out, err := execute("curve", "-i", input, "--by", "contract")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldStartWith, "contract,time,survival")
			convey.So(out, convey.ShouldContainSubstring, "\nmonthly,1,0.5,2,1,0\n")
		})

		convey.Convey("When a full report is written", func() {
			outDir := filepath.Join(dir, "reports")
			coefs := writeFile(t, dir, "coefs.yaml", coefficients)
			out, err := execute("report", "-i", input, "-c", coefs, "-o", outDir)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, `"c_index"`)

			for _, name := range []string{"hazard_ratios.csv", "summary.json", "km_overall.csv", "km_by_contract.csv"} {
				_, err := os.Stat(filepath.Join(outDir, name))
				convey.So(err, convey.ShouldBeNil)
			}

			hr, err := os.ReadFile(filepath.Join(outDir, "hazard_ratios.csv"))
			convey.So(err, convey.ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(string(hr)), "\n")
			convey.So(lines[1], convey.ShouldStartWith, "contract_monthly,")
			convey.So(lines[3], convey.ShouldStartWith, "contract_annual,")
		})

		convey.Convey("When no coefficient file is given", func() {
			_, err := execute("report", "-i", input)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When no input flag is given", func() {
			_, err := execute("curve")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When synthetic customers are printed", func() {
			out, err := execute("synth", "-n", "5", "--seed", "3")
			convey.So(err, convey.ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(out), "\n")
			convey.So(len(lines), convey.ShouldEqual, 6)
			convey.So(lines[0], convey.ShouldStartWith, "customer_id,tenure_months,")
			convey.So(lines[1], convey.ShouldStartWith, "C100000,")

			again, _ := execute("synth", "-n", "5", "--seed", "3", "--workers", "1")
			convey.So(again, convey.ShouldEqual, out)
		})

		convey.Convey("When a synthetic table is written and its curve printed", func() {
			path := filepath.Join(dir, "synth", "telco.csv")
			_, err := execute("synth", "-n", "200", "-o", path)
			convey.So(err, convey.ShouldBeNil)

			out, err := execute("curve", "-i", path, "--duration", "tenure_months", "--event", "churn")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldStartWith, "time,survival,at_risk,events,censored\n0,1,200,")
		})

		convey.Convey("When the input is missing", func() {
			_, err := execute("curve", "-i", filepath.Join(dir, "missing.csv"))
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
