package xerrors_test

import (
	"testing"

	"github.com/jetsetilly/psxbus/internal/xerrors"
)

func TestError(t *testing.T) {
	e := xerrors.New(xerrors.BIOSSizeMismatch, 524288, 1024)
	got := e.Error()
	want := "BIOS image mismatch, expecting 524288 bytes, got 1024 bytes"
	if got != want {
		t.Errorf("unexpected error message: got %q, want %q", got, want)
	}
}
