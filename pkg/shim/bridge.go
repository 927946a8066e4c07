package shim

import (
	"maps"

	"go.uber.org/zap"

	shimerrors "github.com/go-drift/embedshim/pkg/errors"
	"github.com/go-drift/embedshim/pkg/loop"
	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

// ActivationBridge upgrades a stub to an authentic player once the user has
// opted in.
type ActivationBridge struct {
	loop     *loop.Loop
	doc      *page.Document
	registry *Registry
	loader   *DeferredLoader
	cfg      Config
}

// NewActivationBridge creates a bridge.
func NewActivationBridge(l *loop.Loop, doc *page.Document, reg *Registry, loader *DeferredLoader, cfg Config) *ActivationBridge {
	return &ActivationBridge{loop: l, doc: doc, registry: reg, loader: loader, cfg: cfg}
}

// Activate loads the library if needed and migrates the stub registered for
// target. The returned future resolves when migration has finished, or
// straight away when there is nothing to activate. Activating an instance
// that is already loading or active joins the first activation. A nil
// target resolves without loading anything.
func (b *ActivationBridge) Activate(target *page.Element) *loop.Future[struct{}] {
	done := loop.NewFuture[struct{}](b.loop)
	if target == nil {
		Logger().Debug("activation without a target ignored")
		done.Resolve(struct{}{})
		return done
	}
	b.loader.EnsureLoaded().Then(func(h *LoadedHandle) {
		inst, ok := b.registry.Lookup(target)
		if !ok {
			Logger().Debug("activation for unknown element ignored", zap.Int64("ref", target.Ref()))
			done.Resolve(struct{}{})
			return
		}

		inst.mu.Lock()
		if inst.state != LifecycleStub {
			joined := inst.activation
			inst.mu.Unlock()
			if joined == nil {
				done.Resolve(struct{}{})
				return
			}
			joined.Then(func(struct{}) { done.Resolve(struct{}{}) })
			return
		}
		inst.state = LifecycleLoading
		inst.activation = done
		inst.mu.Unlock()

		b.construct(inst, h, done)
	})
	return done
}

func (b *ActivationBridge) construct(inst *Instance, h *LoadedHandle, done *loop.Future[struct{}]) {
	handle := inst.handle
	b.restoreFrame(inst)

	handle.mu.RLock()
	stub := handle.stub
	handle.mu.RUnlock()
	opts := inst.Options
	if stub != nil {
		stub.mu.Lock()
		opts.VideoID = stub.videoID
		stub.mu.Unlock()
	}
	opts.PlayerVars = maps.Clone(inst.Options.PlayerVars)
	if b.cfg.AutoplayOnActivate {
		if opts.PlayerVars == nil {
			opts.PlayerVars = make(map[string]string)
		}
		opts.PlayerVars["autoplay"] = "1"
	}

	stateListener := inst.stateListener()
	forwardDirect := len(inst.live()) == 0 && stateListener != nil

	var real widgetapi.Player
	migrated := false
	opts.Events = map[string]widgetapi.Listener{
		widgetapi.EventReady: func(e widgetapi.Event) {
			if migrated {
				return
			}
			migrated = true
			authentic := real
			if authentic == nil {
				authentic = e.Target
			}
			b.migrate(inst, authentic, e, !forwardDirect)
			done.Resolve(struct{}{})
		},
	}
	if forwardDirect {
		opts.Events[widgetapi.EventStateChange] = b.forwardState(inst, retarget(handle, stateListener))
	}

	p, err := h.NewPlayer(inst.Target, opts)
	if err != nil {
		shimerrors.Report(&shimerrors.ShimError{
			Op:   "bridge.activate",
			Kind: shimerrors.KindActivation,
			Err:  err,
		})
		return
	}
	real = p
	Logger().Debug("authentic player constructed", zap.String("id", inst.ExternalID))
}

// forwardState passes authentic state changes to l. The stub may still
// synthesize a state while the authentic player loads, so whether early
// states are swallowed is decided per event.
func (b *ActivationBridge) forwardState(inst *Instance, l widgetapi.Listener) widgetapi.Listener {
	swallowing := b.cfg.Swallow.Wrap(l)
	return func(e widgetapi.Event) {
		if inst.wasSynthesized() {
			swallowing(e)
			return
		}
		l(e)
	}
}

// migrate runs from the authentic ready event: it switches the handle,
// delivers ready to the host if the stub never did, and replays buffered
// listeners in registration order.
func (b *ActivationBridge) migrate(inst *Instance, real widgetapi.Player, ready widgetapi.Event, replayConfig bool) {
	handle := inst.handle
	handle.migrate(real)

	inst.fireReady(ready.Data)

	if replayConfig {
		if l := inst.stateListener(); l != nil {
			real.AddEventListener(widgetapi.EventStateChange, b.cfg.Swallow.Wrap(retarget(handle, l)))
		}
	}
	for _, rec := range inst.live() {
		l := retarget(handle, rec.fn)
		if rec.event == widgetapi.EventStateChange {
			l = b.cfg.Swallow.Wrap(l)
		}
		detach := real.AddEventListener(rec.event, l)

		inst.mu.Lock()
		removed := rec.removed
		if !removed {
			rec.detach = detach
		}
		inst.mu.Unlock()
		if removed {
			detach()
		}
	}

	inst.clearBuffered()
	inst.advance(LifecycleActive)
	Logger().Info("player activated", zap.String("id", inst.ExternalID))
}

// restoreFrame puts the real frame back when the substitution subsystem
// left its placeholder in the document.
func (b *ActivationBridge) restoreFrame(inst *Instance) {
	if inst.Target.Attached() {
		return
	}
	ph, ok := b.registry.Placeholder(inst.Target)
	if !ok || !ph.Attached() {
		return
	}
	if err := b.doc.Replace(ph, inst.Target); err != nil {
		shimerrors.Report(&shimerrors.ShimError{
			Op:   "bridge.restoreFrame",
			Kind: shimerrors.KindActivation,
			Err:  err,
		})
	}
}
