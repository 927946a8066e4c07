package jsbind

import (
	"strings"

	"github.com/joeycumines/goja"

	"github.com/go-drift/embedshim/pkg/page"
)

func (r *Runtime) documentObject() *goja.Object {
	doc := r.vm.NewObject()
	_ = doc.Set("getElementById", func(id string) goja.Value {
		return r.elementValue(r.doc.GetElementByID(id))
	})
	_ = doc.Set("createElement", func(tag string) goja.Value {
		return r.elementValue(r.doc.CreateElement(strings.ToLower(tag)))
	})
	_ = doc.DefineAccessorProperty("body", r.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return r.elementValue(r.doc.Body())
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	return doc
}

// elementValue returns the script object for el. Each element has exactly
// one object, so identity comparisons in script hold.
func (r *Runtime) elementValue(el *page.Element) goja.Value {
	if el == nil {
		return goja.Null()
	}
	if o, ok := r.elements[el]; ok {
		return o
	}

	o := r.vm.NewObject()
	_ = o.DefineAccessorProperty("id",
		r.vm.ToValue(func(goja.FunctionCall) goja.Value { return r.vm.ToValue(el.ID()) }),
		r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			el.SetAttr("id", call.Argument(0).String())
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = o.Set("tagName", strings.ToUpper(el.Tag()))
	_ = o.Set("getAttribute", func(name string) string { return el.Attr(name) })
	_ = o.Set("setAttribute", func(name, value string) { el.SetAttr(name, value) })
	_ = o.Set("appendChild", func(child goja.Value) goja.Value {
		if c := r.elementFrom(child); c != nil {
			r.doc.Append(el, c)
		}
		return child
	})

	r.elements[el] = o
	r.elemRefs[o] = el
	return o
}

// elementFrom maps a script value back to its element, or nil.
func (r *Runtime) elementFrom(v goja.Value) *page.Element {
	o, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return r.elemRefs[o]
}
