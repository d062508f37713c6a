// Package logger provides enhanced logging with handler-specific support
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger interface for abstracted logging
type Logger interface {
	Info(message string, fields ...Field)
	Error(message string, fields ...Field)
	Warn(message string, fields ...Field)
	Debug(message string, fields ...Field)
	Success(message string, fields ...Field)
	WithHandler(handler string) Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// WithField creates a new field
func WithField(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// HandlerLogger implements Logger with handler awareness
type HandlerLogger struct {
	logger      *logrus.Logger
	handlerName string
	mu          sync.RWMutex
}

// CustomFormatter formats logs with colors and the hook prefix
type CustomFormatter struct {
	TimestampFormat string
	DisableColors   bool
}

// Format implements logrus.Formatter
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	hook := "🪝"
	timestamp := entry.Time.Format(f.TimestampFormat)

	// Color the level
	var levelColor *color.Color
	var levelText string

	switch entry.Level {
	case logrus.ErrorLevel:
		levelColor = color.New(color.FgRed, color.Bold)
		levelText = "ERROR"
	case logrus.WarnLevel:
		levelColor = color.New(color.FgYellow, color.Bold)
		levelText = "WARN"
	case logrus.InfoLevel:
		levelColor = color.New(color.FgCyan)
		levelText = "INFO"
	case logrus.DebugLevel:
		levelColor = color.New(color.FgWhite, color.Faint)
		levelText = "DEBUG"
	default:
		levelColor = color.New(color.FgGreen)
		levelText = "SUCCESS"
	}

	// Build handler prefix
	handlerPrefix := ""
	if handler, ok := entry.Data["handler"]; ok {
		handlerPrefix = fmt.Sprintf("[%s] ", color.New(color.FgBlue).Sprint(handler))
		delete(entry.Data, "handler") // Remove from data to avoid duplication
	}

	// Format the message
	var output string
	if f.DisableColors {
		output = fmt.Sprintf("%s [%s] %s: %s%s", hook, timestamp, levelText, handlerPrefix, entry.Message)
	} else {
		output = fmt.Sprintf("%s [%s] %s: %s%s",
			hook,
			timestamp,
			levelColor.Sprint(levelText),
			handlerPrefix,
			entry.Message,
		)
	}

	// Add remaining fields
	if len(entry.Data) > 0 {
		fields := " {"
		first := true
		for k, v := range entry.Data {
			if !first {
				fields += ", "
			}
			fields += fmt.Sprintf("%s=%v", k, v)
			first = false
		}
		fields += "}"
		output += color.New(color.FgWhite, color.Faint).Sprint(fields)
	}

	return []byte(output + "\n"), nil
}

// CreateLogger creates a new logger instance.
// Logs go to stderr: stdout is reserved for the JSON result the
// assistant process reads back.
func CreateLogger(logFile string, logLevel string) Logger {
	log := logrus.New()

	// Set log level
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	// Set custom formatter for console
	log.SetFormatter(&CustomFormatter{
		TimestampFormat: "15:04:05",
		DisableColors:   false,
	})

	log.SetOutput(os.Stderr)

	// Add file output if specified
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			multiWriter := io.MultiWriter(os.Stderr, file)
			log.SetOutput(multiWriter)
		}
	}

	return &HandlerLogger{
		logger: log,
	}
}

// CreateLoggerWithOutput creates a logger with custom output (for testing)
func CreateLoggerWithOutput(logFile string, logLevel string, output io.Writer) Logger {
	log := logrus.New()

	// Set log level
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	// Set custom formatter for console
	log.SetFormatter(&CustomFormatter{
		TimestampFormat: "15:04:05",
		DisableColors:   true, // Disable colors for test output
	})

	// Set custom output
	if output == nil {
		output = io.Discard
	}
	log.SetOutput(output)

	return &HandlerLogger{
		logger: log,
	}
}

// WithHandler creates a new logger with handler context
func (l *HandlerLogger) WithHandler(handler string) Logger {
	return &HandlerLogger{
		logger:      l.logger,
		handlerName: handler,
	}
}

// convertFields converts Field slice to logrus.Fields
func (l *HandlerLogger) convertFields(fields []Field) logrus.Fields {
	result := make(logrus.Fields)
	if l.handlerName != "" {
		result["handler"] = l.handlerName
	}
	for _, f := range fields {
		result[f.Key] = f.Value
	}
	return result
}

// Info logs an info message
func (l *HandlerLogger) Info(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Info(message)
}

// Error logs an error message
func (l *HandlerLogger) Error(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Error(message)
}

// Warn logs a warning message
func (l *HandlerLogger) Warn(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Warn(message)
}

// Debug logs a debug message
func (l *HandlerLogger) Debug(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Debug(message)
}

// Success logs a success message (info level with special formatting)
func (l *HandlerLogger) Success(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Info("✅ " + message)
}

// ConsoleLogger provides simple console output for CLI
type ConsoleLogger struct{}

// NewConsoleLogger creates a console logger for CLI output
func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{}
}

// Info prints info message
func (c *ConsoleLogger) Info(message string) {
	hook := "🪝"
	fmt.Fprintf(os.Stderr, "%s %s %s\n", hook, color.CyanString("[Wisp]"), message)
}

// Error prints error message
func (c *ConsoleLogger) Error(message string) {
	hook := "🪝"
	fmt.Fprintf(os.Stderr, "%s %s %s\n", hook, color.RedString("[Wisp]"), message)
}

// Warn prints warning message
func (c *ConsoleLogger) Warn(message string) {
	hook := "🪝"
	fmt.Fprintf(os.Stderr, "%s %s %s\n", hook, color.YellowString("[Wisp]"), message)
}

// Success prints success message
func (c *ConsoleLogger) Success(message string) {
	hook := "🪝"
	fmt.Fprintf(os.Stderr, "%s %s ✅ %s\n", hook, color.GreenString("[Wisp]"), message)
}
