// Package logger provides the process-wide structured logger: JSON to
// stdout plus a rotating file in production, colored text in development,
// with errors duplicated into their own rotating file.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger = logrus.New()

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string
	Environment string
	LogDir      string
	MaxSize     int // megabytes
	MaxBackups  int // number of files
	MaxAge      int // days
	Compress    bool
}

// InitLogger configures the shared logger with rotating file output.
func InitLogger(config LogConfig) error {
	Logger = logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)

	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return err
	}

	allLogsFile := &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, "dab.log"),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
	errorLogsFile := &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, "error.log"),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}

	Logger.SetOutput(io.MultiWriter(os.Stdout, allLogsFile))
	Logger.SetFormatter(Formatter(config.Environment))
	Logger.AddHook(&errorFileHook{errorWriter: errorLogsFile})

	return nil
}

// Formatter returns the formatter for an environment: human-readable text
// in development, JSON everywhere else so log shippers can parse it.
func Formatter(environment string) logrus.Formatter {
	if environment == "development" {
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		}
	}
	return &logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	}
}

// errorFileHook duplicates error-and-above entries into a separate file so
// they survive rotation of the main log.
type errorFileHook struct {
	errorWriter io.Writer
}

func (hook *errorFileHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	_, err = hook.errorWriter.Write([]byte(line))
	return err
}

func (hook *errorFileHook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
	}
}

func Info(args ...interface{}) {
	Logger.Info(args...)
}

func Infof(format string, args ...interface{}) {
	Logger.Infof(format, args...)
}

// WithFields creates an entry with fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithField creates an entry with a single field.
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithError creates an entry carrying an error under logrus.ErrorKey.
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}
