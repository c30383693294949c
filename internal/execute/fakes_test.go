package execute

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeProcess exits when interrupted unless stubborn is set, and exits
// when killed unless unkillable is set.
type fakeProcess struct {
	pid        int
	stubborn   bool
	unkillable bool
	out        io.ReadCloser

	done       chan struct{}
	once       sync.Once
	code       atomic.Int32
	interrupts atomic.Int32
	kills      atomic.Int32
}

func newFakeProcess(pid int) *fakeProcess {
	p := &fakeProcess{pid: pid, done: make(chan struct{}), out: io.NopCloser(strings.NewReader(""))}
	p.code.Store(-1)
	return p
}

func (p *fakeProcess) exit(code int) {
	p.once.Do(func() {
		p.code.Store(int32(code))
		close(p.done)
	})
}

func (p *fakeProcess) Pid() int              { return p.pid }
func (p *fakeProcess) Output() io.ReadCloser { return p.out }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) ExitCode() int         { return int(p.code.Load()) }
func (p *fakeProcess) WaitErr() error        { return nil }

func (p *fakeProcess) Interrupt() error {
	p.interrupts.Add(1)
	if !p.stubborn {
		p.exit(-1)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.kills.Add(1)
	if !p.unkillable {
		p.exit(-1)
	}
	return nil
}

// recordingSink keeps every frame it is given.
type recordingSink struct {
	mu     sync.Mutex
	frames []Frame
	err    error
}

func (s *recordingSink) Render(_ context.Context, f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return s.err
}

func (s *recordingSink) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}

func (s *recordingSink) Last() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return Frame{}
	}
	return s.frames[len(s.frames)-1]
}
