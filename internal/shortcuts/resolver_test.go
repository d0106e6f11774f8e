package shortcuts

import (
	"context"
	"errors"
	"testing"
)

func TestResolvePassthrough(t *testing.T) {
	s := newTestStore(t)
	r := NewResolver(s)

	res, err := r.Resolve(context.Background(), "Alice", "g", "hello", 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Verb != "g" || res.Args != "hello" {
		t.Fatalf("resolved = %+v", res)
	}
}

func TestResolveExpandsShortcut(t *testing.T) {
	s := newTestStore(t)
	r := NewResolver(s)
	ctx := context.Background()

	if err := s.SaveShortcut(ctx, "Alice", "hi", "g hello"); err != nil {
		t.Fatalf("SaveShortcut: %v", err)
	}

	res, err := r.Resolve(ctx, "Alice", "hi", "", 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Verb != "g" || res.Args != "hello" {
		t.Fatalf("resolved = %+v", res)
	}

	// Extra args are appended to the expansion before re-tokenizing.
	res, err = r.Resolve(ctx, "Alice", "hi", "world", 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Verb != "g" || res.Args != "hello world" {
		t.Fatalf("resolved = %+v", res)
	}
}

func TestResolveDirectRecursion(t *testing.T) {
	s := newTestStore(t)
	r := NewResolver(s)
	ctx := context.Background()

	if err := s.SaveShortcut(ctx, "Alice", "loop", "loop"); err != nil {
		t.Fatalf("SaveShortcut: %v", err)
	}
	if _, err := r.Resolve(ctx, "Alice", "loop", "", 0); !errors.Is(err, ErrDirectRecursion) {
		t.Fatalf("expected ErrDirectRecursion, got %v", err)
	}
}

func TestResolveDepthLimit(t *testing.T) {
	s := newTestStore(t)
	r := NewResolver(s)
	ctx := context.Background()

	// Depths up to MaxDepth terminate with a resolved command.
	for depth := 0; depth <= MaxDepth; depth++ {
		if _, err := r.Resolve(ctx, "Alice", "g", "x", depth); err != nil {
			t.Fatalf("depth %d: %v", depth, err)
		}
	}
	// Depth 3 always yields the error, never a resolved command.
	if _, err := r.Resolve(ctx, "Alice", "g", "x", MaxDepth+1); !errors.Is(err, ErrMaxRecursion) {
		t.Fatalf("expected ErrMaxRecursion, got %v", err)
	}
}

func TestSplitVerb(t *testing.T) {
	cases := []struct{ in, verb, args string }{
		{"g hello", "g", "hello"},
		{"g", "g", ""},
		{"  bw  top  Alice ", "bw", "top  Alice"},
		{"", "", ""},
	}
	for _, c := range cases {
		verb, args := SplitVerb(c.in)
		if verb != c.verb || args != c.args {
			t.Fatalf("SplitVerb(%q) = %q, %q", c.in, verb, args)
		}
	}
}
