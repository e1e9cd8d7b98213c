package workspace

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Format identifies a workspace file syntax.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension. JSON is read as YAML.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, nil
	case ".yaml", ".yml", ".json":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported workspace file %q: want .cue, .yaml, .yml or .json", path)
	}
}

// LoadError reports a file that could not be parsed.
type LoadError struct {
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// LoadFile reads and parses a workspace file. Relative definition files
// resolve against the workspace file's directory.
func LoadFile(path string) (*Workspace, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	ws, err := Parse(data, format, path)
	if err != nil {
		return nil, err
	}
	ws.Dir = filepath.Dir(path)
	return ws, nil
}

// Parse decodes a workspace. filename is used in error positions only.
func Parse(data []byte, format Format, filename string) (*Workspace, error) {
	switch format {
	case FormatCUE:
		return parseCUE(data, filename)
	case FormatYAML:
		return parseYAML(data)
	default:
		return nil, fmt.Errorf("unknown workspace format %q", format)
	}
}

func parseYAML(data []byte) (*Workspace, error) {
	var ws Workspace
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ws); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Message: fmt.Sprintf("parse yaml: %v", err)}
	}
	return &ws, nil
}

func parseCUE(data []byte, filename string) (*Workspace, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("workspace schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}
	v = schema.LookupPath(cue.ParsePath("#Workspace")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(err)
	}

	var ws Workspace
	if err := v.Decode(&ws); err != nil {
		return nil, cueError(err)
	}
	return &ws, nil
}

// cueError keeps the first CUE error with its position.
func cueError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
