package underwriting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"loan-assistant/internal/models"
)

const (
	// MinCreditScore is the lowest bureau score that can be approved.
	MinCreditScore = 700

	// SalarySlipTenureYears and SalarySlipRate are the terms the affordability
	// check assumes when a salary slip is reviewed.
	SalarySlipTenureYears = 3
	SalarySlipRate        = StandardRate
)

var (
	limitMultiplier = decimal.NewFromInt(2)
	maxEMIShare     = decimal.NewFromFloat(0.5)
)

// Verdict is the result of an eligibility check. EMI is only set by
// VerifySalarySlip.
type Verdict struct {
	Status models.Decision `json:"status"`
	Reason string          `json:"reason"`
	EMI    decimal.Decimal `json:"emi"`
}

// CheckEligibility applies the first-stage rules in order, first match wins:
//
//  1. credit score below 700          -> REJECTED
//  2. amount above 2x the limit       -> REJECTED
//  3. amount within the limit         -> APPROVED_INSTANT
//  4. otherwise                       -> REQUIRES_SALARY_SLIP
func CheckEligibility(requested, preApprovedLimit decimal.Decimal, creditScore int) Verdict {
	if creditScore < MinCreditScore {
		return Verdict{
			Status: models.DecisionRejected,
			Reason: fmt.Sprintf("credit score below %d threshold", MinCreditScore),
		}
	}

	ceiling := preApprovedLimit.Mul(limitMultiplier)
	if requested.GreaterThan(ceiling) {
		return Verdict{
			Status: models.DecisionRejected,
			Reason: fmt.Sprintf("requested amount %s exceeds 2x limit of %s",
				FormatAmount(requested), FormatAmount(preApprovedLimit)),
		}
	}

	if requested.LessThanOrEqual(preApprovedLimit) {
		return Verdict{
			Status: models.DecisionApprovedInstant,
			Reason: "within pre-approved limit",
		}
	}

	return Verdict{
		Status: models.DecisionRequiresSalarySlip,
		Reason: "amount exceeds pre-approved limit but is within 2x multiplier",
	}
}

// VerifySalarySlip approves a high amount only when the EMI at the given terms
// is at most half of the monthly salary.
func VerifySalarySlip(requested, monthlySalary decimal.Decimal, tenureYears, annualRatePercent float64) Verdict {
	emi := ComputeEMI(requested, annualRatePercent, tenureYears)

	if emi.LessThanOrEqual(monthlySalary.Mul(maxEMIShare)) {
		return Verdict{
			Status: models.DecisionApprovedWithDocs,
			Reason: fmt.Sprintf("EMI %s is within 50%% of salary %s", FormatAmount(emi), FormatAmount(monthlySalary)),
			EMI:    emi,
		}
	}

	return Verdict{
		Status: models.DecisionRejected,
		Reason: fmt.Sprintf("EMI %s exceeds 50%% of monthly salary", FormatAmount(emi)),
		EMI:    emi,
	}
}

// VerifySalarySlipDefault runs VerifySalarySlip with the standard 3 year, 12% terms.
func VerifySalarySlipDefault(requested, monthlySalary decimal.Decimal) Verdict {
	return VerifySalarySlip(requested, monthlySalary, SalarySlipTenureYears, SalarySlipRate)
}
