// Package synth generates synthetic household profiles with the allocation
// label the savings model was trained on.
//
// Every Generator owns its random source, so two generators built from the
// same seed always produce the same rows regardless of what else the
// process is doing.
package synth

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
	"github.com/YuminosukeSato/allocgo/preprocessing"
	"github.com/YuminosukeSato/allocgo/sklearn/ensemble"
)

// Industries lists the job_industry vocabulary in training order.
var Industries = []string{
	"Technology", "Education", "Healthcare", "Finance", "Manufacturing",
	"Retail", "Government", "Construction", "Services", "Energy",
}

// IndustryWeights are the sampling probabilities of Industries.
var IndustryWeights = []float64{0.15, 0.1, 0.12, 0.13, 0.12, 0.1, 0.08, 0.07, 0.08, 0.05}

// DependentWeights are the probabilities of 0 to 4 dependents.
var DependentWeights = []float64{0.3, 0.25, 0.25, 0.15, 0.05}

// stableIndustries get a higher income stability.
var stableIndustries = map[string]bool{"Government": true, "Finance": true, "Healthcare": true}

// Profile is one generated household with its allocation label.
type Profile struct {
	UserID              int
	MonthlyIncome       float64
	Age                 int
	RiskTolerance       float64
	JobIndustry         string
	DependentCount      int
	MonthlyExpenses     float64
	EmergencyFundRatio  float64
	SpendingVolatility  float64
	IncomeStability     float64
	SavingsGoalTimeline int
	FixedDepositRate    float64
	SavingsAccountRate  float64
	DebtToIncomeRatio   float64

	FixedDepositAllocation   int
	SavingsAccountAllocation int
}

// Record converts the profile into a model input record.
func (p Profile) Record() preprocessing.Record {
	return preprocessing.Record{
		"user_id":               p.UserID,
		"monthly_income":        p.MonthlyIncome,
		"age":                   p.Age,
		"risk_tolerance":        p.RiskTolerance,
		"job_industry":          p.JobIndustry,
		"dependent_count":       p.DependentCount,
		"monthly_expenses":      p.MonthlyExpenses,
		"emergency_fund_ratio":  p.EmergencyFundRatio,
		"spending_volatility":   p.SpendingVolatility,
		"income_stability":      p.IncomeStability,
		"savings_goal_timeline": p.SavingsGoalTimeline,
		"fixed_deposit_rate":    p.FixedDepositRate,
		"savings_account_rate":  p.SavingsAccountRate,
		"debt_to_income_ratio":  p.DebtToIncomeRatio,
	}
}

// Label computes the fixed-deposit share a profile is labelled with:
// a weighted blend of risk tolerance, income stability, goal timeline and
// spending steadiness, scaled to percent, clipped to [30, 80] and rounded
// half to even.
func Label(riskTolerance, incomeStability float64, timelineMonths int, spendingVolatility float64) int {
	score := riskTolerance/10*0.3 +
		incomeStability*0.3 +
		float64(timelineMonths)/48*0.2 +
		(1-spendingVolatility)*0.2
	return ensemble.Allocate(score * 100).FixedDeposit
}

// Generator draws profiles from the training distribution.
type Generator struct {
	seed       uint64
	src        rand.Source
	industries distuv.Categorical
	dependents distuv.Categorical
	nextID     int
}

// New returns a generator seeded with seed.
func New(seed uint64) *Generator {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Generator{
		seed:       seed,
		src:        src,
		industries: distuv.NewCategorical(IndustryWeights, src),
		dependents: distuv.NewCategorical(DependentWeights, src),
		nextID:     1,
	}
}

// Seed returns the seed the generator was built with.
func (g *Generator) Seed() uint64 {
	return g.seed
}

func (g *Generator) normal(mu, sigma, lo, hi float64) float64 {
	v := distuv.Normal{Mu: mu, Sigma: sigma, Src: g.src}.Rand()
	return errors.ClipValue(v, lo, hi)
}

// Next draws one profile. User ids count up from 1.
func (g *Generator) Next() Profile {
	p := Profile{UserID: g.nextID}
	g.nextID++

	p.MonthlyIncome = g.normal(5000, 1500, 2500, 15000)
	p.Age = int(g.normal(35, 8, 23, 60))
	p.RiskTolerance = g.normal(5.5, 1.5, 1, 10)
	p.JobIndustry = Industries[int(g.industries.Rand())]
	p.DependentCount = int(g.dependents.Rand())

	// expenses grow 10% per dependent
	p.MonthlyExpenses = p.MonthlyIncome * g.normal(0.65, 0.1, 0.4, 0.85) * (1 + float64(p.DependentCount)*0.1)
	p.EmergencyFundRatio = g.normal(0.4, 0.15, 0.1, 0.8)
	p.SpendingVolatility = g.normal(0.2, 0.05, 0.1, 0.4)

	p.IncomeStability = g.normal(0.85, 0.1, 0.6, 0.95)
	if stableIndustries[p.JobIndustry] {
		p.IncomeStability = errors.ClipValue(p.IncomeStability+0.1, 0, 1)
	}

	p.SavingsGoalTimeline = int(g.normal(24, 8, 6, 48))
	p.FixedDepositRate = g.normal(2.8, 0.2, 2.3, 3.3)
	p.SavingsAccountRate = g.normal(0.5, 0.1, 0.3, 0.7)

	p.DebtToIncomeRatio = g.normal(0.3, 0.1, 0, 0.6)
	if p.Age < 30 {
		p.DebtToIncomeRatio *= 0.8
	}

	p.FixedDepositAllocation = Label(p.RiskTolerance, p.IncomeStability, p.SavingsGoalTimeline, p.SpendingVolatility)
	p.SavingsAccountAllocation = 100 - p.FixedDepositAllocation

	roundColumns(&p)
	return p
}

// Generate draws n profiles.
func (g *Generator) Generate(n int) []Profile {
	out := make([]Profile, n)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}

// roundColumns rounds the continuous columns to two decimals, after the
// label has been computed from the unrounded values.
func roundColumns(p *Profile) {
	for _, v := range []*float64{
		&p.MonthlyIncome, &p.RiskTolerance, &p.MonthlyExpenses, &p.EmergencyFundRatio,
		&p.SpendingVolatility, &p.IncomeStability, &p.FixedDepositRate,
		&p.SavingsAccountRate, &p.DebtToIncomeRatio,
	} {
		*v = round2(*v)
	}
}

// round2 rounds the binary value half to even at two decimals, the way
// pandas does: 2.675 is stored as 2.67499... and becomes 2.67.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.RoundToEven(v*100) / 100
}
