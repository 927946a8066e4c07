package jsbind

import (
	"github.com/joeycumines/goja"

	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/shim"
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

// namespaceObject builds the script-facing widget namespace.
func (r *Runtime) namespaceObject(ns *shim.Namespace) *goja.Object {
	o := r.vm.NewObject()
	ctor := r.vm.ToValue(func(call goja.ConstructorCall) *goja.Object {
		p, err := ns.NewPlayer(r.targetFrom(call.Argument(0)), r.optionsFrom(call.Argument(1)))
		if err != nil {
			panic(r.vm.NewTypeError(err.Error()))
		}
		return r.handleObject(p)
	}).(*goja.Object)
	proto, ok := ctor.Get("prototype").(*goja.Object)
	if !ok {
		proto = r.vm.NewObject()
		_ = proto.DefineDataProperty("constructor", ctor, goja.FLAG_TRUE, goja.FLAG_FALSE, goja.FLAG_TRUE)
		_ = ctor.DefineDataProperty("prototype", proto, goja.FLAG_TRUE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	}
	r.playerProto = proto
	_ = o.Set("Player", ctor)
	_ = o.Set("get", func(id string) goja.Value {
		p, ok := ns.Get(id)
		if !ok {
			return goja.Undefined()
		}
		return r.playerValue(p)
	})

	states := r.vm.NewObject()
	for name, s := range ns.PlayerState() {
		_ = states.Set(name, int(s))
	}
	_ = o.Set("PlayerState", states)
	_ = o.Set("loaded", ns.Loaded())

	_ = o.Set("subscribe", func(event string) { ns.Subscribe(event, nil) })
	_ = o.Set("unsubscribe", func(event string) { ns.Unsubscribe(event, nil) })
	_ = o.Set("ready", func(goja.Value) { ns.Ready(nil) })
	_ = o.Set("scan", ns.Scan)
	return o
}

// targetFrom accepts an element id or an element object.
func (r *Runtime) targetFrom(v goja.Value) any {
	if el := r.elementFrom(v); el != nil {
		return el
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

func (r *Runtime) optionsFrom(v goja.Value) widgetapi.Options {
	var opts widgetapi.Options
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return opts
	}
	o := v.ToObject(r.vm)
	opts.VideoID = stringProp(o, "videoId")
	opts.Width = stringProp(o, "width")
	opts.Height = stringProp(o, "height")
	opts.Host = stringProp(o, "host")

	if vars, ok := o.Get("playerVars").(*goja.Object); ok {
		opts.PlayerVars = make(map[string]string)
		for _, k := range vars.Keys() {
			opts.PlayerVars[k] = vars.Get(k).String()
		}
	}
	if events, ok := o.Get("events").(*goja.Object); ok {
		opts.Events = make(map[string]widgetapi.Listener)
		for _, k := range events.Keys() {
			if fn, ok := goja.AssertFunction(events.Get(k)); ok {
				opts.Events[k] = r.listener(fn)
			}
		}
	}
	return opts
}

func stringProp(o *goja.Object, name string) string {
	v := o.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

// listener adapts a script callback. The callback receives the usual
// {target, data} event object.
func (r *Runtime) listener(fn goja.Callable) widgetapi.Listener {
	return func(e widgetapi.Event) {
		ev := r.vm.NewObject()
		_ = ev.Set("target", r.playerValue(e.Target))
		_ = ev.Set("data", r.dataValue(e.Data))
		if _, err := fn(goja.Undefined(), ev); err != nil {
			r.reportScriptError("jsbind.listener", err)
		}
	}
}

func (r *Runtime) dataValue(v any) goja.Value {
	switch t := v.(type) {
	case nil:
		return goja.Null()
	case widgetapi.PlayerState:
		return r.vm.ToValue(int(t))
	case *page.Element:
		return r.elementValue(t)
	default:
		return r.vm.ToValue(t)
	}
}

func (r *Runtime) playerValue(p widgetapi.Player) goja.Value {
	switch t := p.(type) {
	case nil:
		return goja.Null()
	case *shim.Player:
		return r.handleObject(t)
	case *jsPlayer:
		return t.obj
	default:
		return r.vm.ToValue(t)
	}
}

type listenerKey struct {
	event string
	fn    *goja.Object
}

type handleBinding struct {
	obj      *goja.Object
	removers map[listenerKey][]func()
}

// handleObject returns the script object for a shim handle. Members come from
// the fixed schema: data members become accessors, methods call through the
// handle so they follow it across activation.
func (r *Runtime) handleObject(p *shim.Player) *goja.Object {
	if b, ok := r.handles[p]; ok {
		return b.obj
	}
	b := &handleBinding{obj: r.vm.NewObject(), removers: make(map[listenerKey][]func())}
	r.handles[p] = b

	// Stub handles are instances of the shim's Player; once migrated they
	// inherit from the authentic constructor instead.
	if r.playerProto != nil {
		_ = b.obj.SetPrototype(r.playerProto)
	}
	p.OnMigrate(func(authentic widgetapi.Player) {
		if jp, ok := authentic.(*jsPlayer); ok {
			if proto := jp.obj.Prototype(); proto != nil {
				_ = b.obj.SetPrototype(proto)
			}
		}
	})

	for _, m := range widgetapi.Members() {
		name := m.Name
		switch m.Kind {
		case widgetapi.MemberField:
			getter := r.vm.ToValue(func(goja.FunctionCall) goja.Value {
				v, ok := p.Get(name)
				if !ok {
					return goja.Undefined()
				}
				return r.vm.ToValue(v)
			})
			setter := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
				p.Set(name, call.Argument(0).Export())
				return goja.Undefined()
			})
			_ = b.obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
		case widgetapi.MemberMethod:
			_ = b.obj.Set(name, func(call goja.FunctionCall) goja.Value {
				args := make([]any, len(call.Arguments))
				for i, a := range call.Arguments {
					args[i] = a.Export()
				}
				res, err := p.Call(name, args...)
				if err != nil {
					panic(r.vm.NewGoError(err))
				}
				return r.dataValue(res)
			})
		}
	}

	_ = b.obj.Set("addEventListener", func(event string, fn goja.Value) {
		callable, ok := goja.AssertFunction(fn)
		if !ok {
			return
		}
		key := listenerKey{event: event, fn: fn.(*goja.Object)}
		b.removers[key] = append(b.removers[key], p.AddEventListener(event, r.listener(callable)))
	})
	_ = b.obj.Set("removeEventListener", func(event string, fn goja.Value) {
		o, ok := fn.(*goja.Object)
		if !ok {
			return
		}
		key := listenerKey{event: event, fn: o}
		for _, remove := range b.removers[key] {
			remove()
		}
		delete(b.removers, key)
	})
	return b.obj
}
