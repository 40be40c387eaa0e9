package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   zapcore.Level
		wantOK bool
	}{
		{in: "debug", want: zapcore.DebugLevel, wantOK: true},
		{in: "info", want: zapcore.InfoLevel, wantOK: true},
		{in: "warn", want: zapcore.WarnLevel, wantOK: true},
		{in: "error", want: zapcore.ErrorLevel, wantOK: true},
		{in: "fatal", wantOK: false},
		{in: "verbose", wantOK: false},
		{in: "", wantOK: false},
	}

	for _, tt := range tests {
		got, ok := parseLevel(tt.in)
		if ok != tt.wantOK {
			t.Errorf("parseLevel(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithKeepsInterface(t *testing.T) {
	l := NewNop().With(String("conn", "c1"), Int("n", 1))
	l.Info("still works", Bool("ok", true))
	if err := l.Sync(); err != nil {
		t.Errorf("Sync() on nop logger error = %v", err)
	}
}

func TestNewHonoursLevel(t *testing.T) {
	l, ok := New("warn", false).(*zapLogger)
	if !ok {
		t.Fatal("New() did not return a zap-backed logger")
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info enabled at warn level")
	}
	if !l.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn disabled at warn level")
	}
}
