package core

import (
	"fmt"

	"github.com/labstack/gommon/log"
)

// Logger represents structured logger.
type Logger struct {
	*log.Logger
	fields []any
}

// NewLogger returns new logger instance.
func NewLogger() *Logger {
	return &Logger{Logger: log.New("")}
}

// With returns logger that attaches fields to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger,
		fields: append(args, l.fields...),
	}
}

func (l *Logger) Debug(args ...any) {
	record := map[string]any{}
	setLogLine(record, args...)
	l.debugj(record)
}

func (l *Logger) Info(args ...any) {
	record := map[string]any{}
	setLogLine(record, args...)
	l.infoj(record)
}

func (l *Logger) Warn(args ...any) {
	record := map[string]any{}
	setLogLine(record, args...)
	l.warnj(record)
}

func (l *Logger) Error(args ...any) {
	record := map[string]any{}
	setLogLine(record, args...)
	l.errorj(record)
}

func (l *Logger) Debugf(format string, args ...any) {
	record := map[string]any{}
	setLogLine(record, fmt.Sprintf(format, args...))
	l.debugj(record)
}

func (l *Logger) Infof(format string, args ...any) {
	record := map[string]any{}
	setLogLine(record, fmt.Sprintf(format, args...))
	l.infoj(record)
}

func (l *Logger) Warnf(format string, args ...any) {
	record := map[string]any{}
	setLogLine(record, fmt.Sprintf(format, args...))
	l.warnj(record)
}

func (l *Logger) Errorf(format string, args ...any) {
	record := map[string]any{}
	setLogLine(record, fmt.Sprintf(format, args...))
	l.errorj(record)
}

func (l *Logger) debugj(record log.JSON) {
	setLogLine(record, l.fields...)
	l.Logger.Debugj(record)
}

func (l *Logger) infoj(record log.JSON) {
	setLogLine(record, l.fields...)
	l.Logger.Infoj(record)
}

func (l *Logger) warnj(record log.JSON) {
	setLogLine(record, l.fields...)
	l.Logger.Warnj(record)
}

func (l *Logger) errorj(record log.JSON) {
	setLogLine(record, l.fields...)
	l.Logger.Errorj(record)
}

// LogField represents named logger field.
type LogField struct {
	Name  string
	Value any
}

// Any creates field with specified name and value.
func Any(name string, value any) LogField {
	return LogField{Name: name, Value: value}
}

func setLogLine(record map[string]any, args ...any) {
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case string:
			record["message"] = v
		case LogField:
			record[v.Name] = v.Value
		case error:
			record["error"] = v.Error()
		default:
			record["message"] = fmt.Sprint(v)
		}
	}
}
