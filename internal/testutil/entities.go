package testutil

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/waypath/internal/model"
)

// ErrHistoryUnavailable is returned by AppendInvocation when FailHistory
// is set.
var ErrHistoryUnavailable = errors.New("history unavailable")

// MemoryEntities is an in-memory entity store and invocation history for
// a single owner. Owner arguments are ignored.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemoryEntities struct {
	mu          sync.Mutex
	aliases     []model.AliasRule
	definitions map[string]model.Definition
	variables   map[string]string
	secrets     map[string]string
	records     []model.InvocationRecord

	// FailHistory makes AppendInvocation fail.
	FailHistory bool
}

// NewMemoryEntities creates an empty store.
func NewMemoryEntities() *MemoryEntities {
	return &MemoryEntities{
		definitions: map[string]model.Definition{},
		variables:   map[string]string{},
		secrets:     map[string]string{},
	}
}

// AddDefinition stores an enabled definition.
func (m *MemoryEntities) AddDefinition(name, code string) {
	m.PutDefinition(model.Definition{Name: name, Code: code, Enabled: true})
}

// PutDefinition stores d as given.
func (m *MemoryEntities) PutDefinition(d model.Definition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.definitions[d.Name] = d
}

// AddAlias appends an enabled rule positioned after the existing ones.
func (m *MemoryEntities) AddAlias(name string, matchType model.MatchType, pattern, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aliases = append(m.aliases, model.AliasRule{
		Name:      name,
		MatchType: matchType,
		Pattern:   pattern,
		Target:    target,
		Enabled:   true,
		Position:  len(m.aliases),
	})
}

// PutAlias stores r as given.
func (m *MemoryEntities) PutAlias(r model.AliasRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aliases = append(m.aliases, r)
}

// SetVariable sets a variable.
func (m *MemoryEntities) SetVariable(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.variables[name] = value
}

// SetSecret sets a secret.
func (m *MemoryEntities) SetSecret(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[name] = value
}

// AliasRules implements engine.EntityStore.
func (m *MemoryEntities) AliasRules(_ context.Context, _ string) ([]model.AliasRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rules := slices.Clone(m.aliases)
	model.SortAliasRules(rules)
	return rules, nil
}

// Definitions implements engine.EntityStore.
func (m *MemoryEntities) Definitions(_ context.Context, _ string) ([]model.Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := slices.Sorted(maps.Keys(m.definitions))
	out := make([]model.Definition, 0, len(names))
	for _, n := range names {
		out = append(out, m.definitions[n])
	}
	return out, nil
}

// Variables implements engine.EntityStore.
func (m *MemoryEntities) Variables(_ context.Context, _ string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.variables), nil
}

// Secrets implements engine.EntityStore.
func (m *MemoryEntities) Secrets(_ context.Context, _ string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.secrets), nil
}

// AppendInvocation implements engine.History.
func (m *MemoryEntities) AppendInvocation(_ context.Context, rec model.InvocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailHistory {
		return ErrHistoryUnavailable
	}
	m.records = append(m.records, rec)
	return nil
}

// Records returns the appended invocation records in order.
func (m *MemoryEntities) Records() []model.InvocationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records)
}
