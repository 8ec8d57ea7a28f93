package processturn

type Input struct {
	ThreadID string `json:"threadId"`
	Message  string `json:"message"`
}

type Output struct {
	Reply          string `json:"reply"`
	Stage          string `json:"stage"`
	Decision       string `json:"decision,omitempty"`
	SanctionLetter string `json:"sanctionLetter,omitempty"`
}
