package entity

import (
	"time"

	"github.com/joseph-ayodele/cogniflow/constants"
)

// LogRecord is an append-only activity log entry.
type LogRecord struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Level     constants.LogLevel `json:"level"`
	Message   string             `json:"message"`
	ModelUsed string             `json:"modelUsed,omitempty"`
}
