package domain

import (
	"testing"

	"github.com/google/uuid"
)

type member struct {
	Name string
}

func TestReference_IDOnly(t *testing.T) {
	id := uuid.New()
	ref := RefID[member](id)

	if ref.ID() != id {
		t.Fatalf("expected id %s, got %s", id, ref.ID())
	}
	if _, ok := ref.Expanded(); ok {
		t.Fatal("expected unexpanded reference")
	}
	if ref.IsZero() {
		t.Fatal("expected non-zero reference")
	}
}

func TestReference_Expanded(t *testing.T) {
	id := uuid.New()
	ref := RefExpanded(id, member{Name: "Sam"})

	got, ok := ref.Expanded()
	if !ok {
		t.Fatal("expected expanded reference")
	}
	if got.Name != "Sam" {
		t.Fatalf("expected Sam, got %q", got.Name)
	}
	if ref.ID() != id {
		t.Fatalf("expected id %s, got %s", id, ref.ID())
	}
}

func TestReference_Zero(t *testing.T) {
	var ref Reference[member]
	if !ref.IsZero() {
		t.Fatal("expected zero reference")
	}
}
