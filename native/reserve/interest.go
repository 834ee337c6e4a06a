package reserve

import "math/big"

// InterestModel encapsulates the parameters that shape how the per-period
// debt growth rate reacts to reserve utilisation. The orchestration layer
// derives a growth rate from it and passes the result to AccrueInterest;
// accrual itself never consults the model.
type InterestModel struct {
	// BaseRate is the minimum per-period growth rate applied when
	// utilisation is zero.
	BaseRate *big.Rat
	// Slope1 is the growth rate increase per unit of utilisation up to the
	// kink point.
	Slope1 *big.Rat
	// Slope2 governs the additional increase applied when utilisation
	// exceeds the kink point.
	Slope2 *big.Rat
	// Kink represents the utilisation ratio where the slope changes to
	// discourage draining the reserve.
	Kink *big.Rat
}

// NewInterestModel constructs an interest model from floating point inputs.
//
// The parameters should be provided as decimals, e.g. a 2% base rate is
// expressed as 0.02 and an 80% kink utilisation as 0.8.
func NewInterestModel(baseRate, slope1, slope2, kink float64) *InterestModel {
	model := &InterestModel{
		BaseRate: new(big.Rat),
		Slope1:   new(big.Rat),
		Slope2:   new(big.Rat),
		Kink:     new(big.Rat),
	}
	model.BaseRate.SetFloat64(baseRate)
	model.Slope1.SetFloat64(slope1)
	model.Slope2.SetFloat64(slope2)
	model.Kink.SetFloat64(kink)
	return model
}

// Clone returns a deep copy of the interest model.
func (m *InterestModel) Clone() *InterestModel {
	if m == nil {
		return nil
	}
	return &InterestModel{
		BaseRate: cloneRat(m.BaseRate),
		Slope1:   cloneRat(m.Slope1),
		Slope2:   cloneRat(m.Slope2),
		Kink:     cloneRat(m.Kink),
	}
}

// Utilisation computes U = debt / (debt + cash - revenue) for the sheet.
// An empty reserve has utilisation zero.
func (m *InterestModel) Utilisation(sheet *BalanceSheet) *big.Rat {
	if sheet == nil || sheet.Debt == nil || sheet.Debt.Sign() == 0 {
		return new(big.Rat)
	}
	total := sheet.TotalValue()
	if total.Sign() <= 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(sheet.Debt, total)
}

// GrowthRate derives the per-period debt growth rate from the kinked curve
// at the sheet's current utilisation.
func (m *InterestModel) GrowthRate(sheet *BalanceSheet) *big.Rat {
	if m == nil {
		return new(big.Rat)
	}
	rate := cloneRat(m.BaseRate)
	utilisation := m.Utilisation(sheet)
	if utilisation.Sign() == 0 {
		return rate
	}

	kink := cloneRat(m.Kink)
	slope1 := cloneRat(m.Slope1)
	slope2 := cloneRat(m.Slope2)
	if kink.Sign() == 0 || utilisation.Cmp(kink) <= 0 {
		// Linear region before the kink.
		return rate.Add(rate, new(big.Rat).Mul(slope1, utilisation))
	}

	// Rate at the kink using slope1.
	rate.Add(rate, new(big.Rat).Mul(slope1, kink))

	// Additional rate beyond the kink using slope2.
	excess := new(big.Rat).Sub(utilisation, kink)
	if excess.Sign() < 0 {
		excess.SetInt64(0)
	}
	return rate.Add(rate, new(big.Rat).Mul(slope2, excess))
}

// DefaultInterestModel provides a reasonable starting configuration
// featuring a kinked curve with a modest base rate.
var DefaultInterestModel = NewInterestModel(0.02, 0.15, 0.6, 0.8)
