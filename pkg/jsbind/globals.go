package jsbind

import (
	"github.com/joeycumines/goja"

	"github.com/go-drift/embedshim/pkg/shim"
)

// globals exposes the script global object as page.Globals. Values bound
// from Go read back as the same Go value; script functions read back as
// func().
type globals struct {
	r *Runtime
}

func (g globals) Lookup(name string) (any, bool) {
	v := g.r.vm.GlobalObject().Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil, false
	}
	if b, ok := g.r.bound[name]; ok && v.SameAs(b.js) {
		return b.value, true
	}
	if fn, ok := goja.AssertFunction(v); ok {
		return func() {
			if _, err := fn(goja.Undefined()); err != nil {
				g.r.reportScriptError("jsbind.global", err)
			}
		}, true
	}
	return v.Export(), true
}

func (g globals) Bind(name string, v any) {
	var js goja.Value
	switch t := v.(type) {
	case *shim.Namespace:
		js = g.r.namespaceObject(t)
	case func():
		js = g.r.vm.ToValue(func(goja.FunctionCall) goja.Value {
			t()
			return goja.Undefined()
		})
	default:
		js = g.r.vm.ToValue(v)
	}
	_ = g.r.vm.GlobalObject().Set(name, js)
	g.r.bound[name] = boundGlobal{js: js, value: v}
}

func (g globals) Unbind(name string) {
	delete(g.r.bound, name)
	_ = g.r.vm.GlobalObject().Delete(name)
}
