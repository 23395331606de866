package pxlog_test

import (
	"strings"
	"testing"

	"github.com/jetsetilly/psxbus/internal/pxlog"
)

func TestLogAndTail(t *testing.T) {
	pxlog.Clear()
	pxlog.Log(pxlog.Allow, "bus", "invalid read at 0xdeadbeef")
	pxlog.Log(pxlog.Allow, "bus", "invalid write at 0xcafebabe")

	var b strings.Builder
	pxlog.Tail(&b, 1)
	if !strings.Contains(b.String(), "cafebabe") {
		t.Fatalf("expected tail to contain most recent entry, got %q", b.String())
	}
}

func TestRepeatedEntriesCollapse(t *testing.T) {
	pxlog.Clear()
	for i := 0; i < 3; i++ {
		pxlog.Log(pxlog.Allow, "bus", "same message")
	}

	var b strings.Builder
	pxlog.Write(&b)
	if strings.Count(b.String(), "same message") != 1 {
		t.Fatalf("expected repeated identical entries to collapse into one line, got %q", b.String())
	}
	if !strings.Contains(b.String(), "repeat x3") {
		t.Fatalf("expected repeat count annotation, got %q", b.String())
	}
}

type deny struct{}

func (deny) AllowLogging() bool { return false }

func TestPermissionDenies(t *testing.T) {
	pxlog.Clear()
	pxlog.Log(deny{}, "bus", "should not appear")

	var b strings.Builder
	pxlog.Write(&b)
	if b.String() != "" {
		t.Fatalf("expected no entries when permission denies logging, got %q", b.String())
	}
}
