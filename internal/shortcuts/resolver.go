package shortcuts

import (
	"context"
	"errors"
	"strings"
)

// MaxDepth is the shortcut nesting limit. Exceeding it is a terminal
// user-facing error, never a retry.
const MaxDepth = 2

var (
	ErrMaxRecursion    = errors.New("maximum shortcut nesting depth exceeded")
	ErrDirectRecursion = errors.New("shortcut expands to itself")
)

// Resolved is a verb/args pair after shortcut expansion.
type Resolved struct {
	Verb string
	Args string
}

// Resolver expands a command verb through the per-owner shortcut table.
type Resolver struct {
	store *Store
}

func NewResolver(store *Store) *Resolver { return &Resolver{store: store} }

// Resolve expands verb through the owner's shortcut table. Only a depth-0
// call consults the table; an expansion whose text equals the verb is
// rejected as direct recursion, anything else is re-tokenized together with
// args and resolved one level deeper.
func (r *Resolver) Resolve(ctx context.Context, owner, verb, args string, depth int) (Resolved, error) {
	if depth > MaxDepth {
		return Resolved{}, ErrMaxRecursion
	}

	if depth == 0 {
		expansion, ok, err := r.store.Shortcut(ctx, owner, verb)
		if err != nil {
			return Resolved{}, err
		}
		if ok {
			if strings.TrimSpace(expansion) == verb {
				return Resolved{}, ErrDirectRecursion
			}
			full := strings.TrimSpace(expansion + " " + args)
			newVerb, newArgs := SplitVerb(full)
			return r.Resolve(ctx, owner, newVerb, newArgs, depth+1)
		}
	}

	return Resolved{Verb: verb, Args: args}, nil
}

// SplitVerb splits a command line into its verb and the remaining args on
// the first whitespace.
func SplitVerb(line string) (string, string) {
	line = strings.TrimSpace(line)
	verb, args, found := strings.Cut(line, " ")
	if !found {
		return line, ""
	}
	return verb, strings.TrimSpace(args)
}
