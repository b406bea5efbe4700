package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestOnceReturnsSameLogger(t *testing.T) {
	o := NewOnce(Options{Level: "debug"})
	a, err := o.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := o.Get()
	if a != b {
		t.Fatalf("expected the same logger instance")
	}
	if !a.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level to be enabled")
	}
}
