package synth

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
)

// Columns is the CSV header, in the training dataset's column order.
var Columns = []string{
	"user_id", "monthly_income", "age", "risk_tolerance", "job_industry", "dependent_count",
	"monthly_expenses", "emergency_fund_ratio", "spending_volatility", "income_stability",
	"savings_goal_timeline", "fixed_deposit_rate", "savings_account_rate", "debt_to_income_ratio",
	"fixed_deposit_allocation_percentage", "savings_account_allocation_percentage",
}

// formatFloat writes the shortest decimal that reads back as v, without
// an exponent.
func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).String()
}

func (p Profile) row() []string {
	return []string{
		strconv.Itoa(p.UserID),
		formatFloat(p.MonthlyIncome),
		strconv.Itoa(p.Age),
		formatFloat(p.RiskTolerance),
		p.JobIndustry,
		strconv.Itoa(p.DependentCount),
		formatFloat(p.MonthlyExpenses),
		formatFloat(p.EmergencyFundRatio),
		formatFloat(p.SpendingVolatility),
		formatFloat(p.IncomeStability),
		strconv.Itoa(p.SavingsGoalTimeline),
		formatFloat(p.FixedDepositRate),
		formatFloat(p.SavingsAccountRate),
		formatFloat(p.DebtToIncomeRatio),
		strconv.Itoa(p.FixedDepositAllocation),
		strconv.Itoa(p.SavingsAccountAllocation),
	}
}

// WriteCSV writes a header line followed by one row per profile.
func WriteCSV(w io.Writer, profiles []Profile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return errors.Wrap(err, "write CSV header")
	}
	for i := range profiles {
		if err := cw.Write(profiles[i].row()); err != nil {
			return errors.Wrapf(err, "write CSV row %d", i+1)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush CSV")
}

// ReadCSV parses a dataset written by WriteCSV or by the training
// pipeline. Columns are matched by header name; integer columns written
// as floats (e.g. "62.0") are accepted.
func ReadCSV(r io.Reader) ([]Profile, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read CSV header")
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range Columns {
		if _, ok := index[name]; !ok {
			return nil, errors.Newf("CSV is missing column %q", name)
		}
	}

	var profiles []Profile
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return profiles, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read CSV line %d", line)
		}

		p, err := parseRow(rec, index)
		if err != nil {
			return nil, errors.Wrapf(err, "CSV line %d", line)
		}
		profiles = append(profiles, p)
	}
}

type rowParser struct {
	rec   []string
	index map[string]int
	err   error
}

func (rp *rowParser) float(col string) float64 {
	if rp.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(rp.rec[rp.index[col]], 64)
	if err != nil {
		rp.err = errors.Wrapf(err, "column %s", col)
	}
	return v
}

func (rp *rowParser) int(col string) int {
	f := rp.float(col)
	if rp.err == nil && f != float64(int(f)) {
		rp.err = errors.Newf("column %s: %v is not an integer", col, f)
	}
	return int(f)
}

func parseRow(rec []string, index map[string]int) (Profile, error) {
	rp := &rowParser{rec: rec, index: index}
	p := Profile{
		UserID:                   rp.int("user_id"),
		MonthlyIncome:            rp.float("monthly_income"),
		Age:                      rp.int("age"),
		RiskTolerance:            rp.float("risk_tolerance"),
		JobIndustry:              rec[index["job_industry"]],
		DependentCount:           rp.int("dependent_count"),
		MonthlyExpenses:          rp.float("monthly_expenses"),
		EmergencyFundRatio:       rp.float("emergency_fund_ratio"),
		SpendingVolatility:       rp.float("spending_volatility"),
		IncomeStability:          rp.float("income_stability"),
		SavingsGoalTimeline:      rp.int("savings_goal_timeline"),
		FixedDepositRate:         rp.float("fixed_deposit_rate"),
		SavingsAccountRate:       rp.float("savings_account_rate"),
		DebtToIncomeRatio:        rp.float("debt_to_income_ratio"),
		FixedDepositAllocation:   rp.int("fixed_deposit_allocation_percentage"),
		SavingsAccountAllocation: rp.int("savings_account_allocation_percentage"),
	}
	return p, rp.err
}
