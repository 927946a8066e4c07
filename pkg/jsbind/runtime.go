// Package jsbind runs host-page script against the shim. It owns a goja
// runtime whose globals are the page's globals: the widget namespace the
// shim installs, a small document API over [page.Document], and the
// go-eventloop browser globals (Promise, queueMicrotask, setInterval and
// friends) bound to the shim loop's event loop. setTimeout is scheduled
// through the shim loop itself so host timers step with [loop.Loop.Drain].
// Console output goes to zap.
//
// A goja runtime is not safe for concurrent use. Every method that touches
// script state must run on the shim loop.
package jsbind

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeycumines/goja"
	gojaeventloop "github.com/joeycumines/goja-eventloop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"

	shimerrors "github.com/go-drift/embedshim/pkg/errors"
	"github.com/go-drift/embedshim/pkg/loop"
	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/shim"
)

func logger() *zap.Logger {
	return shim.Logger().Named("jsbind")
}

// Runtime is a page's script context.
type Runtime struct {
	vm      *goja.Runtime
	loop    *loop.Loop
	doc     *page.Document
	adapter *gojaeventloop.Adapter

	bound    map[string]boundGlobal
	elements map[*page.Element]*goja.Object
	elemRefs map[*goja.Object]*page.Element
	handles  map[*shim.Player]*handleBinding
	players  map[*goja.Object]*jsPlayer

	playerProto *goja.Object

	nextTimer int64
	timers    map[int64]*loop.Timer

	router        *shim.EventRouter
	readyCallback string
	readyReported bool
}

type boundGlobal struct {
	js    goja.Value
	value any
}

// New creates a runtime for doc whose asynchronous work runs on l.
func New(l *loop.Loop, doc *page.Document) (*Runtime, error) {
	vm := goja.New()
	adapter, err := gojaeventloop.New(l.EventLoop(), vm)
	if err != nil {
		return nil, fmt.Errorf("failed to bind event loop: %w", err)
	}
	r := &Runtime{
		vm:       vm,
		loop:     l,
		adapter:  adapter,
		doc:      doc,
		bound:    make(map[string]boundGlobal),
		elements: make(map[*page.Element]*goja.Object),
		elemRefs: make(map[*goja.Object]*page.Element),
		handles:  make(map[*shim.Player]*handleBinding),
		players:  make(map[*goja.Object]*jsPlayer),
		timers:   make(map[int64]*loop.Timer),
	}
	if err := r.installBuiltins(); err != nil {
		return nil, err
	}
	return r, nil
}

// VM returns the underlying goja runtime.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// Globals returns the runtime's global object as page globals, for
// shim.Deps.
func (r *Runtime) Globals() page.Globals {
	return globals{r: r}
}

// Attach routes the host page's ready callback to s once host script
// defines it. Call it before running host script.
func (r *Runtime) Attach(s *shim.Shim) {
	r.router = s.Router()
	r.readyCallback = s.Config().HostReadyCallback
}

// RunScript evaluates src. After it returns, a newly defined host ready
// callback is handed to the shim.
func (r *Runtime) RunScript(name, src string) error {
	_, err := r.vm.RunScript(name, src)
	r.checkHostReady()
	return err
}

func (r *Runtime) checkHostReady() {
	if r.router == nil || r.readyReported || r.readyCallback == "" {
		return
	}
	fn, ok := goja.AssertFunction(r.vm.GlobalObject().Get(r.readyCallback))
	if !ok {
		return
	}
	r.readyReported = true
	r.router.HostAPIReady(func() {
		if _, err := fn(goja.Undefined()); err != nil {
			r.reportScriptError("jsbind.hostReady", err)
		}
	})
}

func (r *Runtime) installBuiltins() error {
	global := r.vm.GlobalObject()
	_ = global.Set("window", global)
	_ = global.Set("document", r.documentObject())

	console := r.vm.NewObject()
	_ = console.Set("log", r.consoleFunc(zap.InfoLevel))
	_ = console.Set("info", r.consoleFunc(zap.InfoLevel))
	_ = console.Set("debug", r.consoleFunc(zap.DebugLevel))
	_ = console.Set("warn", r.consoleFunc(zap.WarnLevel))
	_ = console.Set("error", r.consoleFunc(zap.ErrorLevel))
	_ = global.Set("console", console)

	// Bind extends console with time, count, group and the rest; their
	// output joins the log.
	r.adapter.SetConsoleOutput(&zapio.Writer{Log: logger().With(zap.String("source", "console")), Level: zap.InfoLevel})
	if err := r.adapter.Bind(); err != nil {
		return fmt.Errorf("failed to bind browser globals: %w", err)
	}

	_ = global.Set("setTimeout", r.setTimeout)
	_ = global.Set("clearTimeout", r.clearTimeout)
	return nil
}

func (r *Runtime) consoleFunc(level zapcore.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			parts = append(parts, a.String())
		}
		if ce := logger().Check(level, strings.Join(parts, " ")); ce != nil {
			ce.Write(zap.String("source", "console"))
		}
		return goja.Undefined()
	}
}

// setTimeout schedules fn on the shim loop. A zero delay queues fn behind
// the tasks already posted, keeping timers and shim work in one order.
func (r *Runtime) setTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("setTimeout requires a function as first argument"))
	}
	delay := time.Duration(max(call.Argument(1).ToInteger(), 0)) * time.Millisecond
	args := append([]goja.Value(nil), call.Arguments[min(2, len(call.Arguments)):]...)

	r.nextTimer++
	id := r.nextTimer
	r.timers[id] = r.loop.AfterFunc(delay, func() {
		delete(r.timers, id)
		if _, err := fn(goja.Undefined(), args...); err != nil {
			r.reportScriptError("jsbind.timer", err)
		}
	})
	return r.vm.ToValue(id)
}

func (r *Runtime) clearTimeout(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
	return goja.Undefined()
}

func (r *Runtime) reportScriptError(op string, err error) {
	shimerrors.Report(&shimerrors.ShimError{
		Op:   op,
		Kind: shimerrors.KindUnknown,
		Err:  err,
	})
}
