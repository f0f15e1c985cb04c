package serrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestBase_IsMatchesByCode(t *testing.T) {
	t.Parallel()

	a := NewError("SAGA_NO_ROUTE", "no route", "")
	b := NewError("SAGA_NO_ROUTE", "another message", "")
	c := NewError("OTHER", "no route", "")

	if !errors.Is(fmt.Errorf("ctx: %w", a), b) {
		t.Fatalf("expected wrapped error to match by code")
	}
	if errors.Is(a, c) {
		t.Fatalf("expected different codes not to match")
	}
}

func TestBase_Wrapf(t *testing.T) {
	t.Parallel()

	base := NewError("OUTBOX_INVALID_CONFIG", "invalid outbox configuration", "")
	err := base.Wrapf("batch size %d", -1)
	if !errors.Is(err, base) {
		t.Fatalf("expected errors.Is to find the sentinel")
	}
	if got := err.Error(); got != "invalid outbox configuration: batch size -1" {
		t.Fatalf("unexpected message %q", got)
	}
}
