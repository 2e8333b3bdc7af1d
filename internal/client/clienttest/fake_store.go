// Package clienttest provides a scriptable in-memory RemoteStore for tests.
package clienttest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ethosengine/stewardnet/internal/client"
)

// FakeStore implements client.RemoteStore with a pluggable handler and
// records every operation it serves.
type FakeStore struct {
	mu      sync.Mutex
	calls   []string
	Handler func(op string, payload interface{}) (*client.Response, error)
}

// Call invokes the configured handler, recording the operation name.
func (f *FakeStore) Call(ctx context.Context, op string, payload interface{}) (*client.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	handler := f.Handler
	f.mu.Unlock()

	return handler(op, payload)
}

// Calls returns the operations served so far, in order.
func (f *FakeStore) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times the given operation was served.
func (f *FakeStore) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// OK builds a successful envelope around data.
func OK(data interface{}) *client.Response {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	return &client.Response{Success: true, Data: raw}
}

// Reject builds a rejection envelope with the given reason.
func Reject(reason string) *client.Response {
	return &client.Response{Success: false, Error: reason}
}
