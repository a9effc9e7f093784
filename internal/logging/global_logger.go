package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	setupOnce sync.Once
	writerMu  sync.Mutex
	logWriter *lumberjack.Logger
)

// SetupBaseLogger routes gin's own output through this package. Safe to call repeatedly.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		SetOutput(os.Stdout)
		SetLevel(slog.LevelInfo)

		gin.SetMode(gin.ReleaseMode)
		gin.DefaultWriter = WriterLevel(slog.LevelInfo)
		gin.DefaultErrorWriter = WriterLevel(slog.LevelError)
		gin.DebugPrintFunc = func(format string, values ...any) {
			Debugf(format, values...)
		}

		RegisterExitHandler(closeLogOutputs)
	})
}

// ConfigureLogOutput switches between stdout and a rotating file under logs/.
func ConfigureLogOutput(loggingToFile bool) error {
	SetupBaseLogger()

	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}

	if !loggingToFile {
		SetOutput(os.Stdout)
		return nil
	}

	logDir := "logs"
	if base := writablePath(); base != "" {
		logDir = filepath.Join(base, "logs")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("logging: failed to create log directory: %w", err)
	}
	logWriter = &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "creative-mux.log"),
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     14,
	}
	SetOutput(logWriter)
	return nil
}

func closeLogOutputs() {
	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
}
