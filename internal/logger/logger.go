package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap:        logrus.FieldMap{logrus.FieldKeyTime: "ts"},
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init configures JSONL logging into log/app.log.
func Init(baseDir string) error {
	logDir := filepath.Join(baseDir, "log")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(logDir, "app.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	base.SetOutput(f)
	return nil
}

// SetOutput redirects logs, mostly for tests.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

func SetDebug(enabled bool) {
	if enabled {
		base.SetLevel(logrus.DebugLevel)
		return
	}
	base.SetLevel(logrus.InfoLevel)
}

func Debug(msg string, fields map[string]any) { Entry{base.WithFields(fields)}.Debug(msg, nil) }
func Info(msg string, fields map[string]any)  { Entry{base.WithFields(fields)}.Info(msg, nil) }
func Warn(msg string, fields map[string]any)  { Entry{base.WithFields(fields)}.Warn(msg, nil) }
func Error(msg string, fields map[string]any) { Entry{base.WithFields(fields)}.Error(msg, nil) }

// Entry is a logger carrying fixed fields, e.g. a request id.
type Entry struct {
	e *logrus.Entry
}

func (l Entry) Debug(msg string, fields map[string]any) { l.e.WithFields(fields).Debug(msg) }
func (l Entry) Info(msg string, fields map[string]any)  { l.e.WithFields(fields).Info(msg) }
func (l Entry) Warn(msg string, fields map[string]any)  { l.e.WithFields(fields).Warn(msg) }
func (l Entry) Error(msg string, fields map[string]any) { l.e.WithFields(fields).Error(msg) }

type ctxKey struct{}

// WithRequest returns ctx carrying a logger tagged with requestID.
func WithRequest(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, Entry{base.WithField("request_id", requestID)})
}

// FromContext returns the request logger of ctx, or the base logger.
func FromContext(ctx context.Context) Entry {
	if l, ok := ctx.Value(ctxKey{}).(Entry); ok {
		return l
	}
	return Entry{logrus.NewEntry(base)}
}

// RequestID returns the id attached by WithRequest, "" if none.
func RequestID(ctx context.Context) string {
	if l, ok := ctx.Value(ctxKey{}).(Entry); ok {
		if id, ok := l.e.Data["request_id"].(string); ok {
			return id
		}
	}
	return ""
}
