package ipccom

import (
	"os"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("ipccom")

var stderrFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.4s} %{module} ▶ %{message}`,
)

// SetupLogging installs a leveled stderr backend for every module-scoped
// logger obtained with logging.MustGetLogger (ipccom, ipcconnect,
// wsloop, ...). The level defaults to defaultLevel but can be overridden
// per-process with the IPCCOM_LOG_LEVEL environment variable.
func SetupLogging(defaultLevel logging.Level) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	logging.SetFormatter(stderrFormat)
	leveled := logging.AddModuleLevel(backend)

	level := defaultLevel
	if v := os.Getenv("IPCCOM_LOG_LEVEL"); v != "" {
		if parsed, err := logging.LogLevel(v); err == nil {
			level = parsed
		}
	}
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)
}
