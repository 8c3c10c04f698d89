package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const logFilePermissions = 0o600

// SetupLogging направляет slog в файл path. Файл закрывает вызывающий.
func SetupLogging(path string, debug bool) (io.Closer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию для логов: %w", err)
		}
	}
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть лог-файл: %w", err)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	// Текстовый формат для читаемости логов
	logHandler := slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(logHandler))
	slog.Info("Логгер инициализирован", "path", path, "debug", debug)
	return logFile, nil
}
