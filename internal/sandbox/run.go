package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dop251/goja"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Template is what resolve_template hands to script code.
type Template struct {
	Name    string
	Address string
	Source  string
}

// Capabilities are the read-only collaborators injected into a run.
type Capabilities struct {
	Variables map[string]string
	Secrets   map[string]string
	Servers   map[string]string
	Query     map[string]string
	Request   map[string]any

	// ResolveTemplate is exposed as resolve_template when non-nil.
	ResolveTemplate func(ctx context.Context, name string) (Template, error)

	Logger *slog.Logger
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderMarkdown converts GitHub-flavored markdown to HTML.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Run executes the entry point with args and returns the exported result:
// string, []byte, bool, int64, float64, map[string]any, []any or nil.
func (p *Program) Run(ctx context.Context, args []any, caps Capabilities) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, &InterruptedError{Name: p.name, Cause: err}
	}

	vm := goja.New()
	logger := caps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fz, err := newFreezer(vm)
	if err != nil {
		return nil, err
	}
	request := fz.value(caps.Request)
	contextObj := fz.object(map[string]goja.Value{
		"variables": fz.value(caps.Variables),
		"secrets":   fz.value(caps.Secrets),
		"servers":   fz.value(caps.Servers),
		"query":     fz.value(caps.Query),
		"request":   request,
	})
	// Capability failures are thrown into the script; if the script lets
	// one escape, the original Go error is returned instead of a
	// ScriptError.
	thrown := map[*goja.Object]error{}
	throw := func(err error) {
		obj := vm.NewGoError(err)
		thrown[obj] = err
		panic(obj)
	}
	if err := p.installGlobals(ctx, vm, contextObj, caps, logger, throw); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	if _, err := vm.RunProgram(p.prog); err != nil {
		return nil, p.convertError(err, thrown)
	}

	fn, ok := goja.AssertFunction(vm.Get(p.entry))
	if !ok {
		return nil, &SyntaxError{Name: p.name, Message: fmt.Sprintf("%s is not a function", p.entry)}
	}

	values := make([]goja.Value, len(args))
	for i, a := range args {
		switch a.(type) {
		case nil:
			values[i] = goja.Undefined()
		case ContextObject:
			values[i] = vm.Get("context")
		case RequestObject:
			values[i] = request
		default:
			values[i] = vm.ToValue(a)
		}
	}

	result, err := fn(goja.Undefined(), values...)
	if err != nil {
		return nil, p.convertError(err, thrown)
	}
	return export(result)
}

// ContextObject is the sentinel argument replaced by the injected context.
type ContextObject struct{}

// RequestObject is the sentinel argument replaced by the request details.
type RequestObject struct{}

func (p *Program) installGlobals(ctx context.Context, vm *goja.Runtime, contextObj goja.Value, caps Capabilities, logger *slog.Logger, throw func(error)) error {
	if err := vm.Set("context", contextObj); err != nil {
		return err
	}

	console := vm.NewObject()
	if err := console.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		logger.Info("script console", "definition", p.name, "message", strings.Join(parts, " "))
		return goja.Undefined()
	}); err != nil {
		return err
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}

	if err := vm.Set("render_markdown", func(src string) string {
		html, err := RenderMarkdown(src)
		if err != nil {
			throw(err)
		}
		return html
	}); err != nil {
		return err
	}

	if caps.ResolveTemplate == nil {
		return nil
	}
	return vm.Set("resolve_template", func(name string) goja.Value {
		tpl, err := caps.ResolveTemplate(ctx, name)
		if err != nil {
			throw(err)
		}
		obj := vm.NewObject()
		_ = obj.Set("name", tpl.Name)
		_ = obj.Set("address", tpl.Address)
		_ = obj.Set("source", tpl.Source)
		_ = obj.Set("render", func(data map[string]any) string {
			out, err := RenderTemplate(tpl, data)
			if err != nil {
				throw(err)
			}
			return out
		})
		return obj
	})
}

// convertError maps goja failures onto the package's error types.
func (p *Program) convertError(err error, thrown map[*goja.Object]error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		cause, _ := interrupted.Value().(error)
		if cause == nil {
			cause = errors.New(interrupted.String())
		}
		return &InterruptedError{Name: p.name, Cause: cause}
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		if obj, ok := ex.Value().(*goja.Object); ok {
			if cause, ok := thrown[obj]; ok {
				return cause
			}
		}
		msg := ex.Error()
		if v := ex.Value(); v != nil {
			msg = v.String()
		}
		return &ScriptError{Name: p.name, Message: msg, Stack: truncateStack(ex.String())}
	}
	return &ScriptError{Name: p.name, Message: err.Error()}
}

// export converts a JS value into plain Go values, turning ArrayBuffer and
// Uint8Array into []byte.
func export(v goja.Value) (any, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	switch x := v.Export().(type) {
	case goja.ArrayBuffer:
		return x.Bytes(), nil
	case []byte:
		return x, nil
	default:
		if obj, ok := v.(*goja.Object); ok && isByteView(obj) {
			return uint8ArrayBytes(obj)
		}
		return x, nil
	}
}

// isByteView reports whether obj is a typed array with one-byte elements.
func isByteView(obj *goja.Object) bool {
	buf := obj.Get("buffer")
	size := obj.Get("BYTES_PER_ELEMENT")
	if buf == nil || size == nil {
		return false
	}
	if _, ok := buf.Export().(goja.ArrayBuffer); !ok {
		return false
	}
	return size.ToInteger() == 1
}

func uint8ArrayBytes(obj *goja.Object) ([]byte, error) {
	buf, ok := obj.Get("buffer").Export().(goja.ArrayBuffer)
	if !ok {
		return nil, fmt.Errorf("Uint8Array without buffer")
	}
	offset := obj.Get("byteOffset").ToInteger()
	length := obj.Get("byteLength").ToInteger()
	data := buf.Bytes()
	if offset < 0 || offset+length > int64(len(data)) {
		return nil, fmt.Errorf("Uint8Array view out of range")
	}
	return append([]byte(nil), data[offset:offset+length]...), nil
}
