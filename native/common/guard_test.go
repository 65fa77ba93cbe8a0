package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	if err := Guard(nil, "escrow"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	pauses := NewPauses("Escrow")
	if err := Guard(pauses, "escrow"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(pauses, "claims"); err != nil {
		t.Fatalf("unexpected pause for claims: %v", err)
	}
	pauses.Set("escrow", false)
	if err := Guard(pauses, "escrow"); err != nil {
		t.Fatalf("expected resumed module, got %v", err)
	}
	if err := Guard(pauses, ""); err != nil {
		t.Fatalf("empty module must not block: %v", err)
	}
}
