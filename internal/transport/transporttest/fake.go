// Package transporttest provides a scripted transport for instrument tests.
package transporttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/KevinKickass/OpenVNA/internal/transport"
)

var _ transport.Transport = (*Fake)(nil)

type Kind string

const (
	KindWrite Kind = "write"
	KindQuery Kind = "query"
	KindRaw   Kind = "raw"
	KindClear Kind = "clear"
)

// Call is one recorded interaction.
type Call struct {
	Kind Kind
	Cmd  string
}

// Fake records every command and answers queries from a script. Replies
// for a query are consumed in order; the last one stays in place, so a
// single scripted reply answers every repetition.
type Fake struct {
	mu       sync.Mutex
	calls    []Call
	replies  map[string][][]byte
	failures map[string]error
	hooks    []func(cmd string)
	closed   bool
}

func New() *Fake {
	return &Fake{
		replies:  make(map[string][][]byte),
		failures: make(map[string]error),
	}
}

// Respond scripts text replies for query.
func (f *Fake) Respond(query string, replies ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	queue := make([][]byte, len(replies))
	for i, r := range replies {
		queue[i] = []byte(r)
	}
	f.replies[query] = queue
	return f
}

// RespondBlock scripts a binary block payload for query.
func (f *Fake) RespondBlock(query string, data []byte) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.replies[query] = [][]byte{data}
	return f
}

// Fail makes cmd return err, whether written or queried.
func (f *Fake) Fail(cmd string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures[cmd] = err
	return f
}

// OnWrite registers a hook run after every successful write. Hooks may
// call Respond to model instrument state.
func (f *Fake) OnWrite(fn func(cmd string)) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hooks = append(f.hooks, fn)
	return f
}

func (f *Fake) Write(ctx context.Context, cmd string) error {
	if err := f.record(ctx, KindWrite, cmd); err != nil {
		return err
	}

	f.mu.Lock()
	hooks := append([]func(string){}, f.hooks...)
	f.mu.Unlock()

	for _, h := range hooks {
		h(cmd)
	}
	return nil
}

func (f *Fake) Query(ctx context.Context, cmd string) (string, error) {
	data, err := f.answer(ctx, KindQuery, cmd)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *Fake) QueryRaw(ctx context.Context, cmd string) ([]byte, error) {
	return f.answer(ctx, KindRaw, cmd)
}

func (f *Fake) Clear(ctx context.Context) error {
	return f.record(ctx, KindClear, "")
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

// Calls returns every recorded interaction, clears included.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]Call(nil), f.calls...)
}

// Sent returns every command put on the wire, in order.
func (f *Fake) Sent() []string {
	return f.filter(KindWrite, KindQuery, KindRaw)
}

func (f *Fake) Writes() []string {
	return f.filter(KindWrite)
}

// Queries returns text and raw queries in order.
func (f *Fake) Queries() []string {
	return f.filter(KindQuery, KindRaw)
}

func (f *Fake) Clears() int {
	return len(f.filter(KindClear))
}

// Reset forgets recorded calls but keeps the script.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = nil
}

func (f *Fake) filter(kinds ...Kind) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, c := range f.calls {
		for _, k := range kinds {
			if c.Kind == k {
				out = append(out, c.Cmd)
				break
			}
		}
	}
	return out
}

func (f *Fake) record(ctx context.Context, kind Kind, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("transport closed")
	}
	f.calls = append(f.calls, Call{Kind: kind, Cmd: cmd})
	if err, ok := f.failures[cmd]; ok && kind != KindClear {
		return err
	}
	return nil
}

func (f *Fake) answer(ctx context.Context, kind Kind, cmd string) ([]byte, error) {
	if err := f.record(ctx, kind, cmd); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	queue, ok := f.replies[cmd]
	if !ok || len(queue) == 0 {
		return nil, fmt.Errorf("no scripted reply for %q", cmd)
	}
	reply := queue[0]
	if len(queue) > 1 {
		f.replies[cmd] = queue[1:]
	}
	return reply, nil
}
