package models

import "time"

// LogLevel classifies a progress-log line for display.
type LogLevel string

const (
	LogInfo     LogLevel = "info"
	LogProgress LogLevel = "progress"
	LogPending  LogLevel = "pending"
	LogSuccess  LogLevel = "success"
	LogError    LogLevel = "error"
)

// LogEntry is one line of the analysis progress log.
type LogEntry struct {
	Message   string    `json:"message"`
	Level     LogLevel  `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}
