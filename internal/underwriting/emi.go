// Package underwriting holds the loan arithmetic and eligibility rules: EMI
// computation, the instant/salary-slip decision and the tenure offer table.
package underwriting

import (
	"math"

	"github.com/shopspring/decimal"
)

// StandardRate is the fixed annual interest rate, in percent, used for every offer.
const StandardRate = 12.0

// MaxLoanAmount bounds any amount accepted from a customer or operator.
var MaxLoanAmount = decimal.New(1, 12)

// ComputeEMI returns the equated monthly instalment for a principal repaid over
// tenureYears at annualRatePercent, rounded to 2 decimal places.
//
//	r   = annualRatePercent / 1200
//	n   = tenureYears * 12
//	EMI = P * r * (1+r)^n / ((1+r)^n - 1)
//
// A non-positive principal or tenure yields zero, as does a rate or tenure
// that is not a finite number.
func ComputeEMI(principal decimal.Decimal, annualRatePercent, tenureYears float64) decimal.Decimal {
	n := tenureYears * 12
	r := annualRatePercent / 1200
	if !principal.IsPositive() || !finite(n) || n <= 0 || !finite(r) {
		return decimal.Zero
	}

	c, ok := emiCoefficient(r, n)
	if !ok {
		return principal.Div(decimal.NewFromFloat(n)).Round(2)
	}
	return principal.Mul(decimal.NewFromFloat(c)).Round(2)
}

// emiCoefficient returns EMI/P, or false when the loan is repaid evenly
// because there is no interest or (1+r)^n cannot be told apart from 1. When
// (1+r)^n overflows the instalment tends to P*r.
func emiCoefficient(r, n float64) (float64, bool) {
	if r <= 0 {
		return 0, false
	}
	factor := math.Pow(1+r, n)
	if factor-1 == 0 {
		return 0, false
	}
	c := r * factor / (factor - 1)
	if !finite(c) {
		return r, true
	}
	return c, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MonthlyEMI is ComputeEMI for a tenure expressed in months.
func MonthlyEMI(principal decimal.Decimal, annualRatePercent float64, months int) decimal.Decimal {
	return ComputeEMI(principal, annualRatePercent, float64(months)/12)
}
