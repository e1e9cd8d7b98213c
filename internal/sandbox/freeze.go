package sandbox

import (
	"errors"
	"maps"
	"slices"

	"github.com/dop251/goja"
)

// freezer copies Go values into native script objects and freezes them,
// so scripts can read their inputs but never change them.
type freezer struct {
	vm     *goja.Runtime
	freeze goja.Callable
}

func newFreezer(vm *goja.Runtime) (*freezer, error) {
	fn, ok := goja.AssertFunction(vm.Get("Object").ToObject(vm).Get("freeze"))
	if !ok {
		return nil, errors.New("Object.freeze is not available")
	}
	return &freezer{vm: vm, freeze: fn}, nil
}

// value converts maps and slices recursively; scalars pass through.
func (f *freezer) value(v any) goja.Value {
	switch t := v.(type) {
	case map[string]any:
		fields := make(map[string]goja.Value, len(t))
		for k, x := range t {
			fields[k] = f.value(x)
		}
		return f.object(fields)
	case map[string]string:
		fields := make(map[string]goja.Value, len(t))
		for k, x := range t {
			fields[k] = f.vm.ToValue(x)
		}
		return f.object(fields)
	case []any:
		items := make([]any, len(t))
		for i, x := range t {
			items[i] = f.value(x)
		}
		return f.seal(f.vm.NewArray(items...))
	case []string:
		items := make([]any, len(t))
		for i, x := range t {
			items[i] = x
		}
		return f.seal(f.vm.NewArray(items...))
	default:
		return f.vm.ToValue(v)
	}
}

// object builds a frozen object with keys in sorted order.
func (f *freezer) object(fields map[string]goja.Value) goja.Value {
	obj := f.vm.NewObject()
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		_ = obj.Set(k, fields[k])
	}
	return f.seal(obj)
}

func (f *freezer) seal(obj *goja.Object) goja.Value {
	frozen, err := f.freeze(goja.Undefined(), obj)
	if err != nil {
		return obj
	}
	return frozen
}
