package models

import "fmt"

// Stage is the position of a session in the loan application flow.
// Stages only move forward; a reset is the only way back to StageSales.
type Stage int

const (
	StageSales Stage = iota
	StageVerification
	StageUnderwriting
	StageUpload
	StageEnd
)

var stageNames = [...]string{
	StageSales:        "SALES",
	StageVerification: "VERIFICATION",
	StageUnderwriting: "UNDERWRITING",
	StageUpload:       "UPLOAD",
	StageEnd:          "END",
}

func (s Stage) String() string {
	if s < StageSales || s > StageEnd {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage maps a stage name back to its value.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

func (s Stage) MarshalText() ([]byte, error) {
	if s < StageSales || s > StageEnd {
		return nil, fmt.Errorf("invalid stage %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Terminal reports whether no chat input can move the session further.
func (s Stage) Terminal() bool {
	return s == StageEnd
}
