package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
)

// Level represents a logging level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	PROGRESS // Special level that always displays
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case PROGRESS:
		return "PROGRESS"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name into a Level, defaulting to INFO
func ParseLevel(name string) Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Format represents the log output format
type Format int

const (
	Text Format = iota
	JSON
)

// ParseFormat converts a format name into a Format, defaulting to Text
func ParseFormat(name string) Format {
	if strings.EqualFold(strings.TrimSpace(name), "json") {
		return JSON
	}
	return Text
}

// Logger handles structured logging
type Logger struct {
	out    io.Writer
	level  Level
	format Format
	mu     sync.Mutex
}

// LogConfig contains logger configuration
type LogConfig struct {
	Level  Level
	Format Format
}

var (
	defaultLogger = &Logger{
		out:    os.Stderr,
		level:  INFO,
		format: Text,
	}

	debugColor    = color.New(color.FgCyan)
	infoColor     = color.New(color.FgGreen)
	warnColor     = color.New(color.FgYellow)
	errorColor    = color.New(color.FgRed)
	progressColor = color.New(color.FgBlue, color.Bold)
)

// Configure sets up the default logger
func Configure(config LogConfig) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.level = config.Level
	defaultLogger.format = config.Format
}

// SetOutput redirects the default logger, returning the previous writer
func SetOutput(w io.Writer) io.Writer {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	prev := defaultLogger.out
	defaultLogger.out = w
	return prev
}

// Enabled reports whether the default logger emits the given level
func Enabled(level Level) bool {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	return level == PROGRESS || level >= defaultLogger.level
}

type logEntry struct {
	Timestamp string      `json:"timestamp"`
	Level     string      `json:"level"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
}

func (l *Logger) log(level Level, msg string, data interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level != PROGRESS && level < l.level {
		return
	}

	timestamp := time.Now().Format("2006/01/02 15:04:05")

	if l.format == JSON {
		entry := logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Message:   msg,
			Data:      data,
		}
		if err := json.NewEncoder(l.out).Encode(entry); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode log entry: %v\n", err)
		}
		return
	}

	var levelColor *color.Color
	switch level {
	case DEBUG:
		levelColor = debugColor
	case WARN:
		levelColor = warnColor
	case ERROR:
		levelColor = errorColor
	case PROGRESS:
		levelColor = progressColor
	default:
		levelColor = infoColor
	}

	levelStr := levelColor.Sprintf("%-5s", level.String())
	fmt.Fprintf(l.out, "%s %s: %s", timestamp, levelStr, msg)
	if data != nil {
		fmt.Fprintf(l.out, " %+v", data)
	}
	fmt.Fprintln(l.out)
}

func (l *Logger) Debug(msg string, data ...interface{}) {
	l.log(DEBUG, msg, firstOrNil(data))
}

func (l *Logger) Info(msg string, data ...interface{}) {
	l.log(INFO, msg, firstOrNil(data))
}

func (l *Logger) Warn(msg string, data ...interface{}) {
	l.log(WARN, msg, firstOrNil(data))
}

func (l *Logger) Error(msg string, err error, data ...interface{}) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	l.log(ERROR, msg, firstOrNil(data))
}

func (l *Logger) Progress(msg string, data interface{}) {
	l.log(PROGRESS, msg, data)
}

// firstOrNil returns the first element of data if present, nil otherwise
func firstOrNil(data []interface{}) interface{} {
	if len(data) > 0 {
		return data[0]
	}
	return nil
}

// AnalysisStart logs the start of an analysis run
func (l *Logger) AnalysisStart(runID string, subscriptions []string, useCache bool) {
	l.Info("Starting disk analysis", map[string]interface{}{
		"run_id":        runID,
		"subscriptions": subscriptions,
		"use_cache":     useCache,
	})
}

// StageStart logs the start of a pipeline stage
func (l *Logger) StageStart(stage string, items int) {
	l.Info("Starting stage", map[string]interface{}{
		"stage": stage,
		"items": items,
	})
}

// StageComplete logs the completion of a pipeline stage
func (l *Logger) StageComplete(stage string, items int, elapsed time.Duration) {
	l.Info("Stage completed", map[string]interface{}{
		"stage":      stage,
		"items":      items,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

// DiskSkipped logs a disk excluded from the report
func (l *Logger) DiskSkipped(diskID, reason string) {
	l.Warn("Skipping disk", map[string]interface{}{
		"disk_id": diskID,
		"reason":  reason,
	})
}

// AnalysisComplete logs the end of an analysis run
func (l *Logger) AnalysisComplete(runID string, disks, downgrades int) {
	l.Info("Disk analysis complete", map[string]interface{}{
		"run_id":     runID,
		"disks":      disks,
		"downgrades": downgrades,
	})
}

// Default logger methods
func Debug(msg string, data ...interface{}) {
	defaultLogger.Debug(msg, data...)
}

func Info(msg string, data ...interface{}) {
	defaultLogger.Info(msg, data...)
}

func Warn(msg string, data ...interface{}) {
	defaultLogger.Warn(msg, data...)
}

func Error(msg string, err error, data ...interface{}) {
	defaultLogger.Error(msg, err, data...)
}

func Progress(msg string, data ...interface{}) {
	defaultLogger.Progress(msg, firstOrNil(data))
}

func AnalysisStart(runID string, subscriptions []string, useCache bool) {
	defaultLogger.AnalysisStart(runID, subscriptions, useCache)
}

func StageStart(stage string, items int) {
	defaultLogger.StageStart(stage, items)
}

func StageComplete(stage string, items int, elapsed time.Duration) {
	defaultLogger.StageComplete(stage, items, elapsed)
}

func DiskSkipped(diskID, reason string) {
	defaultLogger.DiskSkipped(diskID, reason)
}

func AnalysisComplete(runID string, disks, downgrades int) {
	defaultLogger.AnalysisComplete(runID, disks, downgrades)
}
