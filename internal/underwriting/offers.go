package underwriting

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// LongTenureThreshold is the amount from which the long tenure plans are offered.
var LongTenureThreshold = decimal.NewFromInt(500000)

var (
	standardTenures = []int{12, 24, 36}
	longTenures     = []int{36, 48, 60}
)

// Offer is one row of the tenure table.
type Offer struct {
	TenureMonths  int             `json:"tenure_months"`
	EMI           decimal.Decimal `json:"emi"`
	TotalInterest decimal.Decimal `json:"total_interest"`
}

// OfferTable lists the tenures available for a locked loan amount.
type OfferTable struct {
	Amount decimal.Decimal `json:"amount"`
	Title  string          `json:"title"`
	Offers []Offer         `json:"offers"`
}

// OfferedTenures returns the tenure menu, in months, for an amount.
func OfferedTenures(amount decimal.Decimal) []int {
	if amount.GreaterThanOrEqual(LongTenureThreshold) {
		return append([]int(nil), longTenures...)
	}
	return append([]int(nil), standardTenures...)
}

// BuildOfferTable prices every offered tenure at StandardRate.
func BuildOfferTable(amount decimal.Decimal) OfferTable {
	title := "Standard Plans"
	if amount.GreaterThanOrEqual(LongTenureThreshold) {
		title = "Long Tenure for Low EMI"
	}

	tenures := OfferedTenures(amount)
	table := OfferTable{Amount: amount, Title: title, Offers: make([]Offer, 0, len(tenures))}
	for _, months := range tenures {
		emi := MonthlyEMI(amount, StandardRate, months)
		table.Offers = append(table.Offers, Offer{
			TenureMonths:  months,
			EMI:           emi,
			TotalInterest: emi.Mul(decimal.NewFromInt(int64(months))).Sub(amount),
		})
	}
	return table
}

// Tenures returns the offered tenures in table order.
func (t OfferTable) Tenures() []int {
	out := make([]int, len(t.Offers))
	for i, o := range t.Offers {
		out[i] = o.TenureMonths
	}
	return out
}

// Accepts matches a chat reply against the offered tenures. The reply must be
// exactly the decimal form of one of them; "36 months" or "036" do not match.
func (t OfferTable) Accepts(input string) (int, bool) {
	input = strings.TrimSpace(input)
	for _, o := range t.Offers {
		if input == strconv.Itoa(o.TenureMonths) {
			return o.TenureMonths, true
		}
	}
	return 0, false
}

// Find returns the row for a tenure.
func (t OfferTable) Find(months int) (Offer, bool) {
	for _, o := range t.Offers {
		if o.TenureMonths == months {
			return o, true
		}
	}
	return Offer{}, false
}

// Choices renders the tenures as "'12', '24', or '36'".
func (t OfferTable) Choices() string {
	quoted := make([]string, len(t.Offers))
	for i, o := range t.Offers {
		quoted[i] = fmt.Sprintf("'%d'", o.TenureMonths)
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	default:
		return strings.Join(quoted[:len(quoted)-1], ", ") + ", or " + quoted[len(quoted)-1]
	}
}

// Markdown renders the table shown in chat.
func (t OfferTable) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Loan Offer for ₹%s (%s)**\n\n", FormatAmount(t.Amount.Round(0)), t.Title)
	b.WriteString("| Tenure | Monthly EMI | Total Interest |\n")
	b.WriteString("| :--- | :--- | :--- |\n")
	for _, o := range t.Offers {
		fmt.Fprintf(&b, "| **%d Months** | ₹%s | ₹%s |\n",
			o.TenureMonths, FormatAmount(o.EMI.Round(0)), FormatAmount(o.TotalInterest.Round(0)))
	}
	fmt.Fprintf(&b, "\n*Please type %s to proceed.*", t.Choices())
	return b.String()
}
