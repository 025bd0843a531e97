package synth

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnStats summarizes one numeric column.
type ColumnStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Describe computes per-column statistics over the numeric columns,
// keyed by CSV column name. It returns nil for an empty dataset.
func Describe(profiles []Profile) map[string]ColumnStats {
	if len(profiles) == 0 {
		return nil
	}

	columns := map[string]func(Profile) float64{
		"monthly_income":                      func(p Profile) float64 { return p.MonthlyIncome },
		"age":                                 func(p Profile) float64 { return float64(p.Age) },
		"risk_tolerance":                      func(p Profile) float64 { return p.RiskTolerance },
		"dependent_count":                     func(p Profile) float64 { return float64(p.DependentCount) },
		"monthly_expenses":                    func(p Profile) float64 { return p.MonthlyExpenses },
		"emergency_fund_ratio":                func(p Profile) float64 { return p.EmergencyFundRatio },
		"spending_volatility":                 func(p Profile) float64 { return p.SpendingVolatility },
		"income_stability":                    func(p Profile) float64 { return p.IncomeStability },
		"savings_goal_timeline":               func(p Profile) float64 { return float64(p.SavingsGoalTimeline) },
		"fixed_deposit_rate":                  func(p Profile) float64 { return p.FixedDepositRate },
		"savings_account_rate":                func(p Profile) float64 { return p.SavingsAccountRate },
		"debt_to_income_ratio":                func(p Profile) float64 { return p.DebtToIncomeRatio },
		"fixed_deposit_allocation_percentage": func(p Profile) float64 { return float64(p.FixedDepositAllocation) },
	}

	out := make(map[string]ColumnStats, len(columns))
	values := make([]float64, len(profiles))
	for name, get := range columns {
		for i := range profiles {
			values[i] = get(profiles[i])
		}
		mean, std := stat.MeanStdDev(values, nil)
		out[name] = ColumnStats{
			Mean: mean,
			Std:  std,
			Min:  floats.Min(values),
			Max:  floats.Max(values),
		}
	}
	return out
}

// Labels returns the fixed-deposit labels as float64, index-aligned with
// profiles.
func Labels(profiles []Profile) []float64 {
	out := make([]float64, len(profiles))
	for i := range profiles {
		out[i] = float64(profiles[i].FixedDepositAllocation)
	}
	return out
}
