package sandbox

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// Kind is the entry-point convention a definition follows.
type Kind string

const (
	KindAutoMain   Kind = "auto-main"
	KindRawHandler Kind = "raw-handler"
	KindTransform  Kind = "transform"
)

// entryPoints in precedence order.
var entryPoints = []struct {
	name string
	kind Kind
}{
	{"main", KindAutoMain},
	{"handle", KindRawHandler},
	{"transform", KindTransform},
}

// Param is one declared auto-main parameter.
type Param struct {
	Name     string
	Optional bool
}

// Program is compiled definition code. A Program is immutable and may be
// run concurrently; each run uses its own VM.
type Program struct {
	name   string
	prog   *goja.Program
	kind   Kind
	entry  string
	params []Param
}

// Compile parses code and locates its entry point.
func Compile(name, code string) (*Program, error) {
	parsed, err := parser.ParseFile(nil, name, code, 0)
	if err != nil {
		return nil, &SyntaxError{Name: name, Message: err.Error()}
	}

	decls := map[string]*ast.FunctionLiteral{}
	for _, stmt := range parsed.Body {
		fd, ok := stmt.(*ast.FunctionDeclaration)
		if !ok || fd.Function == nil || fd.Function.Name == nil {
			continue
		}
		decls[string(fd.Function.Name.Name)] = fd.Function
	}

	p := &Program{name: name}
	for _, ep := range entryPoints {
		fn, ok := decls[ep.name]
		if !ok {
			continue
		}
		p.kind = ep.kind
		p.entry = ep.name
		p.params, err = declaredParams(fn)
		if err != nil {
			return nil, &SyntaxError{Name: name, Message: err.Error()}
		}
		break
	}
	if p.entry == "" {
		return nil, &SyntaxError{Name: name, Message: "no entry point: define function main, handle or transform"}
	}

	p.prog, err = goja.CompileAST(parsed, false)
	if err != nil {
		return nil, &SyntaxError{Name: name, Message: err.Error()}
	}
	return p, nil
}

func declaredParams(fn *ast.FunctionLiteral) ([]Param, error) {
	if fn.ParameterList == nil {
		return nil, nil
	}
	params := make([]Param, 0, len(fn.ParameterList.List))
	for _, b := range fn.ParameterList.List {
		id, ok := b.Target.(*ast.Identifier)
		if !ok {
			return nil, fmt.Errorf("entry point parameters must be plain names")
		}
		params = append(params, Param{Name: string(id.Name), Optional: b.Initializer != nil})
	}
	if fn.ParameterList.Rest != nil {
		return nil, fmt.Errorf("entry point cannot use rest parameters")
	}
	return params, nil
}

// Name returns the definition name the program was compiled for.
func (p *Program) Name() string { return p.name }

// Kind returns the entry-point convention.
func (p *Program) Kind() Kind { return p.kind }

// Params returns the declared entry-point parameters.
func (p *Program) Params() []Param { return p.params }
