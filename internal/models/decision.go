package models

// Decision is the outcome class of an eligibility check.
type Decision string

const (
	DecisionApprovedInstant    Decision = "APPROVED_INSTANT"
	DecisionRequiresSalarySlip Decision = "REQUIRES_SALARY_SLIP"
	DecisionRejected           Decision = "REJECTED"
	DecisionApprovedWithDocs   Decision = "APPROVED_WITH_DOCS"
)

// Approved reports whether the decision ends in a sanction letter.
func (d Decision) Approved() bool {
	return d == DecisionApprovedInstant || d == DecisionApprovedWithDocs
}
