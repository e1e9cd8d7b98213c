package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/waypath/internal/cas"
	"github.com/roach88/waypath/internal/gateway"
	"github.com/roach88/waypath/internal/model"
)

// Target receives the entities of an applied workspace.
type Target interface {
	UpsertAlias(ctx context.Context, r model.AliasRule) error
	UpsertDefinition(ctx context.Context, d model.Definition) error
	SetVariable(ctx context.Context, owner, name, value string) error
	SetSecret(ctx context.Context, owner, name, value string) error
}

// Summary counts what Apply wrote.
type Summary struct {
	Definitions int `json:"definitions"`
	Aliases     int `json:"aliases"`
	Variables   int `json:"variables"`
	Secrets     int `json:"secrets"`
	Gateways    int `json:"gateways"`
}

// Apply validates ws and writes it for owner. Definition code is
// snapshotted into content before its row is written. Nothing is written
// when validation fails.
func Apply(ctx context.Context, ws *Workspace, owner string, target Target, content *cas.Store) (Summary, error) {
	var sum Summary
	if errs := Validate(ws); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return sum, fmt.Errorf("invalid workspace: %w", errors.Join(joined...))
	}

	for _, d := range ws.Definitions {
		code, err := d.Source(ws.Dir)
		if err != nil {
			return sum, err
		}
		addr, err := content.Put(ctx, []byte(code), "application/javascript")
		if err != nil {
			return sum, fmt.Errorf("snapshot definition %q: %w", d.Name, err)
		}
		err = target.UpsertDefinition(ctx, model.Definition{
			Name:              d.Name,
			Owner:             owner,
			Code:              code,
			Enabled:           !d.Disabled,
			DefinitionAddress: addr,
		})
		if err != nil {
			return sum, err
		}
		sum.Definitions++
	}

	for i, a := range ws.Aliases {
		rule, err := a.Rule(owner, i)
		if err != nil {
			return sum, err
		}
		if err := target.UpsertAlias(ctx, rule); err != nil {
			return sum, err
		}
		sum.Aliases++
	}

	for _, name := range sortedKeys(ws.Variables) {
		if err := target.SetVariable(ctx, owner, name, ws.Variables[name]); err != nil {
			return sum, err
		}
		sum.Variables++
	}
	for _, name := range sortedKeys(ws.Secrets) {
		if err := target.SetSecret(ctx, owner, name, ws.Secrets[name]); err != nil {
			return sum, err
		}
		sum.Secrets++
	}

	raw, err := ws.GatewayJSON()
	if err != nil {
		return sum, err
	}
	if raw != nil {
		if err := target.SetVariable(ctx, owner, gateway.ConfigVariable, string(raw)); err != nil {
			return sum, err
		}
		sum.Gateways = len(ws.Gateways)
	}
	return sum, nil
}
