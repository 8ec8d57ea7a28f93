package resolvesalaryslip

import (
	"time"

	"loan-assistant/internal/common/config"
)

type Config struct {
	Timeout       time.Duration
	MaxDocumentMB int
}

func LoadConfig(wcfg config.WorkerConfig, maxDocumentMB int) *Config {
	timeout := time.Duration(wcfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxDocumentMB <= 0 {
		maxDocumentMB = 10
	}
	return &Config{Timeout: timeout, MaxDocumentMB: maxDocumentMB}
}
