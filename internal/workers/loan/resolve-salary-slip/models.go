package resolvesalaryslip

type Input struct {
	ThreadID      string `json:"threadId"`
	FileName      string `json:"fileName"`
	ContentBase64 string `json:"contentBase64"`
}

type Output struct {
	Processed      bool   `json:"processed"`
	Decision       string `json:"decision,omitempty"`
	Reply          string `json:"reply"`
	Stage          string `json:"stage"`
	SanctionLetter string `json:"sanctionLetter,omitempty"`
}
