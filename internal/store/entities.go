package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/waypath/internal/model"
)

// AliasRules returns every alias rule for owner, enabled or not, ordered by
// position then name.
func (s *Store) AliasRules(ctx context.Context, owner string) ([]model.AliasRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, match_type, pattern, target, ignore_case, enabled, position
		FROM aliases
		WHERE owner = ?
		ORDER BY position ASC, name COLLATE BINARY ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("query aliases: %w", err)
	}
	defer rows.Close()

	rules := []model.AliasRule{}
	for rows.Next() {
		var (
			r          model.AliasRule
			matchType  string
			ignoreCase int
			enabled    int
		)
		if err := rows.Scan(&r.Name, &matchType, &r.Pattern, &r.Target, &ignoreCase, &enabled, &r.Position); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		r.Owner = owner
		r.MatchType = model.MatchType(matchType)
		r.IgnoreCase = ignoreCase != 0
		r.Enabled = enabled != 0
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// UpsertAlias inserts or replaces an alias rule.
func (s *Store) UpsertAlias(ctx context.Context, r model.AliasRule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aliases (owner, name, match_type, pattern, target, ignore_case, enabled, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET
			match_type = excluded.match_type,
			pattern = excluded.pattern,
			target = excluded.target,
			ignore_case = excluded.ignore_case,
			enabled = excluded.enabled,
			position = excluded.position
	`, r.Owner, r.Name, string(r.MatchType), r.Pattern, r.Target, boolToInt(r.IgnoreCase), boolToInt(r.Enabled), r.Position)
	if err != nil {
		return fmt.Errorf("upsert alias %q: %w", r.Name, err)
	}
	return nil
}

// Definition returns the named definition. The bool is false when no row
// exists; a disabled definition is returned with Enabled false.
func (s *Store) Definition(ctx context.Context, owner, name string) (model.Definition, bool, error) {
	d := model.Definition{Owner: owner, Name: name}
	var enabled int
	err := s.db.QueryRowContext(ctx, `
		SELECT code, enabled, definition_address
		FROM definitions WHERE owner = ? AND name = ?
	`, owner, name).Scan(&d.Code, &enabled, &d.DefinitionAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Definition{}, false, nil
	}
	if err != nil {
		return model.Definition{}, false, fmt.Errorf("query definition %q: %w", name, err)
	}
	d.Enabled = enabled != 0
	return d, true, nil
}

// Definitions lists owner's definitions ordered by name.
func (s *Store) Definitions(ctx context.Context, owner string) ([]model.Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, code, enabled, definition_address
		FROM definitions WHERE owner = ?
		ORDER BY name COLLATE BINARY ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	defs := []model.Definition{}
	for rows.Next() {
		d := model.Definition{Owner: owner}
		var enabled int
		if err := rows.Scan(&d.Name, &d.Code, &enabled, &d.DefinitionAddress); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		d.Enabled = enabled != 0
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// UpsertDefinition inserts or replaces a definition. Callers snapshot the
// code into the CAS first and set DefinitionAddress.
func (s *Store) UpsertDefinition(ctx context.Context, d model.Definition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO definitions (owner, name, code, enabled, definition_address)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET
			code = excluded.code,
			enabled = excluded.enabled,
			definition_address = excluded.definition_address
	`, d.Owner, d.Name, d.Code, boolToInt(d.Enabled), d.DefinitionAddress)
	if err != nil {
		return fmt.Errorf("upsert definition %q: %w", d.Name, err)
	}
	return nil
}

// Variables returns owner's variables.
func (s *Store) Variables(ctx context.Context, owner string) (map[string]string, error) {
	return s.keyValues(ctx, "variables", owner)
}

// Secrets returns owner's secrets.
func (s *Store) Secrets(ctx context.Context, owner string) (map[string]string, error) {
	return s.keyValues(ctx, "secrets", owner)
}

// SetVariable stores a variable value.
func (s *Store) SetVariable(ctx context.Context, owner, name, value string) error {
	return s.setKeyValue(ctx, "variables", owner, name, value)
}

// SetSecret stores a secret value.
func (s *Store) SetSecret(ctx context.Context, owner, name, value string) error {
	return s.setKeyValue(ctx, "secrets", owner, name, value)
}

// table is always one of the fixed names above, never user input.
func (s *Store) keyValues(ctx context.Context, table, owner string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT name, value FROM %s WHERE owner = ?
		ORDER BY name COLLATE BINARY ASC
	`, table), owner)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out[name] = value
	}
	return out, rows.Err()
}

func (s *Store) setKeyValue(ctx context.Context, table, owner, name, value string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (owner, name, value) VALUES (?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET value = excluded.value
	`, table), owner, name, value)
	if err != nil {
		return fmt.Errorf("set %s %q: %w", table, name, err)
	}
	return nil
}
