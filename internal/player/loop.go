package player

import "sync"

// Executor runs closures on the player's event loop.
type Executor interface {
	Post(f func())
}

// Loop runs posted closures one at a time on the goroutine that calls Run.
type Loop struct {
	ch   chan func()
	quit chan struct{}
	once sync.Once
}

func NewLoop() *Loop {
	return &Loop{ch: make(chan func(), 64), quit: make(chan struct{})}
}

// Post queues f. After Close it drops f.
func (l *Loop) Post(f func()) {
	select {
	case l.ch <- f:
	case <-l.quit:
	}
}

// Do runs f on the loop and waits for it, unless the loop is closed first.
func (l *Loop) Do(f func()) {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		f()
	})
	select {
	case <-done:
	case <-l.quit:
	}
}

func (l *Loop) Run() {
	for {
		select {
		case f := <-l.ch:
			f()
		case <-l.quit:
			return
		}
	}
}

func (l *Loop) Close() {
	l.once.Do(func() { close(l.quit) })
}

// Inline runs closures on the caller's goroutine. Tests drive a player with it
// and a fake clock.
type Inline struct{}

func (Inline) Post(f func()) { f() }
