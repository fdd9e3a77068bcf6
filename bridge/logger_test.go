package bridge

import "testing"

type captureSink struct{ lines []string }

func (c *captureSink) Write(line string) error {
	c.lines = append(c.lines, line)
	return nil
}

func TestLoggerGatesLevelsIndependently(t *testing.T) {
	l := NewLogger("[test] ")
	sink := &captureSink{}
	l.SetSink(sink)

	l.SetLevels(false, false, true, true)
	l.Debug("should not appear")
	l.Verbose("should not appear")
	l.Warn("warn line")
	l.Error("error line")

	if len(sink.lines) != 2 {
		t.Fatalf("expected 2 emitted lines with debug/verbose off, got %d: %v", len(sink.lines), sink.lines)
	}

	l.SetLevels(true, true, true, true)
	l.Debug("debug line")
	l.Verbose("verbose line")

	if len(sink.lines) != 4 {
		t.Fatalf("expected 4 emitted lines after enabling debug/verbose, got %d: %v", len(sink.lines), sink.lines)
	}
}

func TestLoggerDefaultsWarnAndErrorOn(t *testing.T) {
	l := NewLogger("[test] ")
	sink := &captureSink{}
	l.SetSink(sink)

	l.Debug("hidden")
	l.Warn("visible")
	l.Error("visible")

	if len(sink.lines) != 2 {
		t.Fatalf("expected warn/error on by default, debug off; got %d lines: %v", len(sink.lines), sink.lines)
	}
}
