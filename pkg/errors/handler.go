package errors

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

type handlerBox struct{ h ErrorHandler }

var current atomic.Pointer[handlerBox]

func init() {
	current.Store(&handlerBox{h: &LogHandler{}})
}

// SetHandler replaces where reports go. nil restores the LogHandler.
func SetHandler(h ErrorHandler) {
	if h == nil {
		h = &LogHandler{}
	}
	current.Store(&handlerBox{h: h})
}

// Funcs adapts plain functions to ErrorHandler. Nil fields drop the report.
type Funcs struct {
	OnError func(*ShimError)
	OnPanic func(*PanicError)
}

func (f Funcs) HandleError(err *ShimError) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

func (f Funcs) HandlePanic(err *PanicError) {
	if f.OnPanic != nil {
		f.OnPanic(err)
	}
}

// Report hands an asynchronous failure to the installed handler, stamping
// the time if the caller left it zero. Nothing reaches host code.
func Report(err *ShimError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	current.Load().h.HandleError(err)
}

// ReportPanic hands a recovered panic to the installed handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	current.Load().h.HandlePanic(err)
}

// Recover reports a panic raised by a host-supplied callback and lets the
// caller continue. Usage: defer errors.Recover("bridge.replay")
func Recover(op string) {
	if r := recover(); r != nil {
		ReportPanic(&PanicError{
			Op:         op,
			Value:      r,
			StackTrace: CaptureStack(),
		})
	}
}

// CaptureStack formats the caller's stack, without the CaptureStack and
// Recover frames, one "function file:line" entry per line.
func CaptureStack() string {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return ""
	}
	var sb strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		fmt.Fprintf(&sb, "%s %s:%d\n", f.Function, f.File, f.Line)
		if !more {
			return sb.String()
		}
	}
}
