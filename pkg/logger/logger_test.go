package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewWithWriterPrefixesComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewWithWriter(&buf, "chromedp")
	Printf(l)("target %s crashed", "tab-1")

	out := buf.String()
	if !strings.Contains(out, "[chromedp] target tab-1 crashed") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestPrintfNilLogger(t *testing.T) {
	t.Parallel()

	Printf(nil)("ignored %d", 1)
}
