package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viewfabric/reactview/eventloop"
	"github.com/viewfabric/reactview/log"
)

type fakeHost struct {
	onCall     func(payload string)
	bootstraps []string
	evals      chan string
	exceptions chan error
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		evals:      make(chan string, 8),
		exceptions: make(chan error, 8),
	}
}

func (h *fakeHost) OnHostCall(fn func(payload string)) { h.onCall = fn }

func (h *fakeHost) Evaluate(expression string) error {
	h.evals <- expression
	return nil
}

func (h *fakeHost) AddBootstrapScript(source string) error {
	h.bootstraps = append(h.bootstraps, source)
	return nil
}

func (h *fakeHost) EmitUnhandledException(err error) { h.exceptions <- err }

// reply extracts the JSON argument from a _deliver expression.
func (h *fakeHost) reply(t *testing.T) map[string]any {
	t.Helper()

	select {
	case expr := <-h.evals:
		const prefix = "window.reactview._deliver("
		require.True(t, strings.HasPrefix(expr, prefix), "unexpected eval %q", expr)
		raw := strings.TrimSuffix(strings.TrimPrefix(expr, prefix), ")")
		var reply map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &reply))
		return reply
	case <-time.After(time.Second):
		t.Fatal("no reply delivered")
		return nil
	}
}

func newTestBridge(t *testing.T) (*Bridge, *fakeHost) {
	t.Helper()

	loop := eventloop.New(log.NewNullLogger())
	t.Cleanup(loop.Stop)

	h := newFakeHost()
	b, err := New(h, loop, log.NewNullLogger())
	require.NoError(t, err)
	require.NotNil(t, h.onCall, "bridge never registered its host-call handler")
	require.Len(t, h.bootstraps, 1)

	return b, h
}

type greeter struct{}

func (greeter) Greet(name string) string { return "Hello, " + name }

type adder struct{}

func (adder) Add(a, b int64) int64 { return a + b }

func TestBridgeInvokesRegisteredObject(t *testing.T) {
	t.Parallel()

	b, h := newTestBridge(t)
	require.NoError(t, b.RegisterObject("greeter", greeter{}))

	h.onCall(`{"type":"invoke","object":"greeter","method":"greet","id":1,"args":["Ada"]}`)

	reply := h.reply(t)
	assert.EqualValues(t, 1, reply["id"])
	assert.Equal(t, "Hello, Ada", reply["result"])
	assert.NotContains(t, reply, "error")
}

func TestBridgeNumericArgsAndResult(t *testing.T) {
	t.Parallel()

	b, h := newTestBridge(t)
	require.NoError(t, b.RegisterObject("adder", adder{}))

	h.onCall(`{"type":"invoke","object":"adder","method":"add","id":2,"args":[19,23]}`)

	reply := h.reply(t)
	assert.EqualValues(t, 2, reply["id"])
	assert.EqualValues(t, 42, reply["result"])
}

func TestBridgeUnknownObject(t *testing.T) {
	t.Parallel()

	_, h := newTestBridge(t)

	h.onCall(`{"type":"invoke","object":"nope","method":"greet","id":3,"args":[]}`)

	select {
	case err := <-h.exceptions:
		assert.Contains(t, err.Error(), `no object registered as "nope"`)
	case <-time.After(time.Second):
		t.Fatal("no exception emitted")
	}

	reply := h.reply(t)
	assert.Contains(t, reply, "error")
}

func TestBridgeUnknownMethod(t *testing.T) {
	t.Parallel()

	b, h := newTestBridge(t)
	require.NoError(t, b.RegisterObject("greeter", greeter{}))

	h.onCall(`{"type":"invoke","object":"greeter","method":"shout","id":4,"args":[]}`)

	select {
	case err := <-h.exceptions:
		assert.Contains(t, err.Error(), `has no method "shout"`)
	case <-time.After(time.Second):
		t.Fatal("no exception emitted")
	}
}

func TestBridgeMalformedPayload(t *testing.T) {
	t.Parallel()

	_, h := newTestBridge(t)

	h.onCall(`{"type":"invoke",`)

	select {
	case err := <-h.exceptions:
		assert.Contains(t, err.Error(), "decoding bridge envelope")
	case <-time.After(time.Second):
		t.Fatal("no exception emitted")
	}
}

func TestBridgeRegisterWhileDispatching(t *testing.T) {
	t.Parallel()

	b, h := newTestBridge(t)
	require.NoError(t, b.RegisterObject("greeter", greeter{}))

	// Registration must stay safe while calls are in flight: the runtime
	// is only touched on the loop, so registering from another goroutine
	// cannot race dispatch.
	calls := make(chan struct{})
	go func() {
		defer close(calls)
		for i := 1; i <= 50; i++ {
			h.onCall(fmt.Sprintf(`{"type":"invoke","object":"greeter","method":"greet","id":%d,"args":["x"]}`, i))
		}
	}()
	require.NoError(t, b.RegisterObject("adder", adder{}))
	<-calls

	h.onCall(`{"type":"invoke","object":"adder","method":"add","id":100,"args":[1,2]}`)

	// Drain replies until the late-registered object answers.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("late-registered object never answered")
		default:
		}
		reply := h.reply(t)
		if id, ok := reply["id"].(float64); ok && id == 100 {
			assert.EqualValues(t, 3, reply["result"])
			return
		}
	}
}

func TestBridgeDuplicateRegistration(t *testing.T) {
	t.Parallel()

	b, _ := newTestBridge(t)
	require.NoError(t, b.RegisterObject("greeter", greeter{}))

	err := b.RegisterObject("greeter", greeter{})
	assert.ErrorContains(t, err, "already registered")
}

func TestDecodeEnvelope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    *envelope
		wantErr string
	}{
		{
			name:    "full",
			payload: `{"type":"invoke","object":"o","method":"m","id":7,"args":[1,"x",true]}`,
			want:    &envelope{Type: "invoke", Object: "o", Method: "m", ID: 7, Args: []any{float64(1), "x", true}},
		},
		{
			name:    "no args",
			payload: `{"type":"invoke","object":"o","method":"m","id":1,"args":null}`,
			want:    &envelope{Type: "invoke", Object: "o", Method: "m", ID: 1},
		},
		{
			name:    "unknown type",
			payload: `{"type":"subscribe","object":"o","method":"m","id":1}`,
			wantErr: "unknown bridge envelope type",
		},
		{
			name:    "garbage",
			payload: `not json`,
			wantErr: "decoding bridge envelope",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := decodeEnvelope([]byte(tt.payload))
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
