package shortcuts

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Store persists per-owner command shortcuts and username aliases in Redis.
// Each owner's table is one JSON document rewritten wholesale on every
// mutation, so a CRUD operation is all-or-nothing against persisted state.
type Store struct{ rdb *redis.Client }

func NewStore(redisURL string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Store{rdb: redis.NewClient(opt)}, nil
}

func NewStoreWithClient(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) keyShortcuts(owner string) string { return "sc:" + strings.TrimSpace(owner) }
func (s *Store) keyAliases(owner string) string   { return "ua:" + strings.TrimSpace(owner) }

func (s *Store) loadTable(ctx context.Context, key string) (map[string]string, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

func (s *Store) saveTable(ctx context.Context, key string, m map[string]string) error {
	if len(m) == 0 {
		return s.rdb.Del(ctx, key).Err()
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, raw, 0).Err()
}

// --- command shortcuts ---

func (s *Store) SaveShortcut(ctx context.Context, owner, name, expansion string) error {
	m, err := s.loadTable(ctx, s.keyShortcuts(owner))
	if err != nil {
		return err
	}
	m[name] = expansion
	return s.saveTable(ctx, s.keyShortcuts(owner), m)
}

// Shortcut looks up one shortcut by (owner, name).
func (s *Store) Shortcut(ctx context.Context, owner, name string) (string, bool, error) {
	m, err := s.loadTable(ctx, s.keyShortcuts(owner))
	if err != nil {
		return "", false, err
	}
	exp, ok := m[name]
	return exp, ok, nil
}

// DeleteShortcut removes one shortcut; reports whether it existed.
func (s *Store) DeleteShortcut(ctx context.Context, owner, name string) (bool, error) {
	m, err := s.loadTable(ctx, s.keyShortcuts(owner))
	if err != nil {
		return false, err
	}
	if _, ok := m[name]; !ok {
		return false, nil
	}
	delete(m, name)
	return true, s.saveTable(ctx, s.keyShortcuts(owner), m)
}

func (s *Store) ListShortcuts(ctx context.Context, owner string) (map[string]string, error) {
	return s.loadTable(ctx, s.keyShortcuts(owner))
}

// --- username aliases ---

// SaveAliases replaces every alias pointing at canonical with the given set.
// Aliases and the canonical name are stored lowercased.
func (s *Store) SaveAliases(ctx context.Context, owner, canonical string, aliases []string) error {
	m, err := s.loadTable(ctx, s.keyAliases(owner))
	if err != nil {
		return err
	}
	lc := strings.ToLower(canonical)
	for alias, target := range m {
		if target == lc {
			delete(m, alias)
		}
	}
	for _, alias := range aliases {
		m[strings.ToLower(alias)] = lc
	}
	return s.saveTable(ctx, s.keyAliases(owner), m)
}

func (s *Store) DeleteAlias(ctx context.Context, owner, alias string) (bool, error) {
	m, err := s.loadTable(ctx, s.keyAliases(owner))
	if err != nil {
		return false, err
	}
	key := strings.ToLower(alias)
	if _, ok := m[key]; !ok {
		return false, nil
	}
	delete(m, key)
	return true, s.saveTable(ctx, s.keyAliases(owner), m)
}

// DeleteAliasesFor removes every alias pointing at canonical; reports
// whether any existed.
func (s *Store) DeleteAliasesFor(ctx context.Context, owner, canonical string) (bool, error) {
	m, err := s.loadTable(ctx, s.keyAliases(owner))
	if err != nil {
		return false, err
	}
	lc := strings.ToLower(canonical)
	removed := false
	for alias, target := range m {
		if target == lc {
			delete(m, alias)
			removed = true
		}
	}
	if !removed {
		return false, nil
	}
	return true, s.saveTable(ctx, s.keyAliases(owner), m)
}

func (s *Store) ListAliases(ctx context.Context, owner string) (map[string]string, error) {
	return s.loadTable(ctx, s.keyAliases(owner))
}

// ResolveUsername maps an alias to its canonical username. Case-insensitive;
// falls back to the input unchanged when no alias exists or the store is
// unreachable. Never fails.
func (s *Store) ResolveUsername(ctx context.Context, owner, name string) string {
	m, err := s.loadTable(ctx, s.keyAliases(owner))
	if err != nil {
		return name
	}
	if canonical, ok := m[strings.ToLower(name)]; ok {
		return canonical
	}
	return name
}
