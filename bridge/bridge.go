// Package bridge exposes native Go objects to the front-end running inside
// a web view. Calls arrive through the view's page binding as JSON
// envelopes and are dispatched on a single event loop, so registered
// objects never see concurrent calls.
package bridge

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/pkg/errors"

	"github.com/viewfabric/reactview/common"
	"github.com/viewfabric/reactview/common/js"
	"github.com/viewfabric/reactview/eventloop"
	"github.com/viewfabric/reactview/log"
)

// host is the slice of the web view the bridge needs.
type host interface {
	OnHostCall(fn func(payload string))
	Evaluate(expression string) error
	AddBootstrapScript(source string) error
	EmitUnhandledException(err error)
}

// Bridge dispatches front-end calls to registered native objects. The goja
// runtime backing it is confined to the event loop: registration only
// records the raw Go object, and all runtime conversion happens during
// dispatch.
type Bridge struct {
	view   host
	loop   *eventloop.Loop
	logger *log.Logger

	// vm must only be touched from the event loop after New returns.
	vm *goja.Runtime

	mu      sync.RWMutex
	objects map[string]any
}

// New attaches a bridge to view, installing the front-end side of the
// protocol as a bootstrap script.
func New(view host, loop *eventloop.Loop, logger *log.Logger) (*Bridge, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	b := &Bridge{
		view:    view,
		loop:    loop,
		logger:  logger,
		vm:      vm,
		objects: make(map[string]any),
	}
	if err := view.AddBootstrapScript(bootstrapScript); err != nil {
		return nil, errors.Wrap(err, "installing bridge bootstrap script")
	}
	view.OnHostCall(b.onPayload)

	return b, nil
}

// RegisterObject makes obj callable from the front-end under name. Method
// names are uncapitalized on the JavaScript side, so Greet becomes greet.
// Safe to call from any goroutine, including after traffic has started.
func (b *Bridge) RegisterObject(name string, obj any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[name]; ok {
		return errors.Errorf("bridge object %q is already registered", name)
	}
	b.objects[name] = obj
	b.logger.Debugf("Bridge:RegisterObject", "%q", name)
	return nil
}

func (b *Bridge) onPayload(payload string) {
	env, err := decodeEnvelope([]byte(payload))
	if err != nil {
		b.view.EmitUnhandledException(err)
		return
	}
	if !b.loop.Post(func() { b.dispatch(env) }) {
		b.logger.Warnf("Bridge:onPayload", "loop stopped, dropping call to %s.%s", env.Object, env.Method)
	}
}

// dispatch runs on the event loop.
func (b *Bridge) dispatch(env *envelope) {
	result, err := b.invoke(env)
	if err != nil {
		b.view.EmitUnhandledException(errors.Wrapf(err, "bridge call %s.%s", env.Object, env.Method))
	}
	b.reply(env.ID, result, err)
}

// invoke runs on the event loop, the only place the runtime is used.
func (b *Bridge) invoke(env *envelope) (any, error) {
	b.mu.RLock()
	raw, ok := b.objects[env.Object]
	b.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("no object registered as %q", env.Object)
	}

	obj := b.vm.ToValue(raw).ToObject(b.vm)
	fn, ok := goja.AssertFunction(obj.Get(env.Method))
	if !ok {
		return nil, errors.Errorf("object %q has no method %q", env.Object, env.Method)
	}

	args := make([]goja.Value, len(env.Args))
	for i, a := range env.Args {
		args[i] = b.vm.ToValue(a)
	}

	v, err := fn(obj, args...)
	if err != nil {
		return nil, err
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

func (b *Bridge) reply(id int64, result any, callErr error) {
	data, err := encodeReply(id, result, callErr)
	if err != nil {
		b.logger.Errorf("Bridge:reply", "encoding reply %d: %v", id, err)
		return
	}
	expr := fmt.Sprintf("window.reactview._deliver(%s)", data)
	if err := b.view.Evaluate(expr); err != nil {
		b.logger.Warnf("Bridge:reply", "delivering reply %d: %v", id, err)
	}
}

// bootstrapScript is the page-side half of the protocol: it wraps the host
// binding in a promise-based API and routes replies back to callers.
var bootstrapScript = strings.ReplaceAll(js.BridgeBootstrapScript, "__BINDING__", common.BindingName)
