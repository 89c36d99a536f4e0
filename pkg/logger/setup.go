package logger

import (
	"os"
)

func SetupLogger(logLevel LogLevel, logJSON, logSource bool) {
	// Logs go to stderr so command output stays pipeable
	Init(&Config{
		Level:      logLevel,
		Output:     os.Stderr,
		JSON:       logJSON,
		AddSource:  logSource,
		TimeFormat: "15:04:05",
	})
}
