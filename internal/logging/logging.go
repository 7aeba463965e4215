package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxLogSizeMB  = 10
	maxLogBackups = 5
	maxLogAgeDays = 14
)

// Setup sends the standard logger and chi's request logger to stdout and,
// when logFile is set, to a rotating file as well. The returned closer
// flushes the file; it is a no-op when no file is used.
func Setup(logFile string) (io.Closer, error) {
	logFile = strings.TrimSpace(logFile)
	if logFile == "" {
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nopCloser{}, err
	}

	file := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}

	out := io.MultiWriter(os.Stdout, file)
	log.SetOutput(out)
	chimiddleware.DefaultLogger = chimiddleware.RequestLogger(&chimiddleware.DefaultLogFormatter{
		Logger:  log.New(out, "", log.LstdFlags),
		NoColor: true,
	})

	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
