package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/engram/internal/apperr"
)

func TestParseNodeType(t *testing.T) {
	for _, nt := range NodeTypes {
		got, err := ParseNodeType(string(nt))
		if err != nil {
			t.Errorf("ParseNodeType(%q): %v", nt, err)
		}
		if got != nt {
			t.Errorf("ParseNodeType(%q) = %q", nt, got)
		}
	}
	if _, err := ParseNodeType("memory"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("invalid type = %v, want ErrValidation", err)
	}
}

func TestParseEdgeType(t *testing.T) {
	for _, et := range EdgeTypes {
		if _, err := ParseEdgeType(string(et)); err != nil {
			t.Errorf("ParseEdgeType(%q): %v", et, err)
		}
	}
	if _, err := ParseEdgeType("blames"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("invalid type = %v, want ErrValidation", err)
	}
}

func TestParseScope(t *testing.T) {
	cases := []struct {
		in   string
		want Scope
		ok   bool
	}{
		{"branch", ScopeBranch, true},
		{"root", ScopeRoot, true},
		{"trunk", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseScope(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("ParseScope(%q) = %q, %v", tc.in, got, err)
		}
		if !tc.ok && !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("ParseScope(%q) = %v, want ErrValidation", tc.in, err)
		}
	}
}

func TestParseDirection(t *testing.T) {
	for _, d := range []Direction{Outgoing, Incoming, Both} {
		if _, err := ParseDirection(string(d)); err != nil {
			t.Errorf("ParseDirection(%q): %v", d, err)
		}
	}
	if _, err := ParseDirection("sideways"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("invalid direction = %v, want ErrValidation", err)
	}
}

func TestNewNode_Defaults(t *testing.T) {
	n := NewNode(NodeDecision, "chose sqlite")
	if n.ID == uuid.Nil {
		t.Error("ID not assigned")
	}
	if n.Type != NodeDecision || n.What != "chose sqlite" {
		t.Errorf("node = %+v", n)
	}
	if n.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", n.Confidence)
	}
	if n.Scope != ScopeBranch {
		t.Errorf("Scope = %q, want branch", n.Scope)
	}
	if n.When != nil {
		t.Error("When should start nil")
	}
	if n.CreatedAt.IsZero() || !n.CreatedAt.Equal(n.UpdatedAt) {
		t.Errorf("timestamps = %v / %v", n.CreatedAt, n.UpdatedAt)
	}
}

func TestEffectiveWhen(t *testing.T) {
	n := NewNode(NodeEvent, "x")
	if !n.EffectiveWhen().Equal(n.CreatedAt) {
		t.Error("nil When should fall back to CreatedAt")
	}

	when := time.Date(2025, 12, 24, 18, 0, 0, 0, time.UTC)
	n.When = &when
	if !n.EffectiveWhen().Equal(when) {
		t.Errorf("EffectiveWhen = %v, want %v", n.EffectiveWhen(), when)
	}
}

func TestEdgeOther(t *testing.T) {
	src, dst := uuid.New(), uuid.New()
	e := NewEdge(src, dst, EdgeLedTo)

	if e.Other(src) != dst {
		t.Error("Other(source) should be target")
	}
	if e.Other(dst) != src {
		t.Error("Other(target) should be source")
	}
	if e.Weight != 1.0 {
		t.Errorf("Weight = %v, want 1.0", e.Weight)
	}
}
