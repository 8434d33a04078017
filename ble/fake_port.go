package ble

import (
	"io"
	"strings"
	"sync"
	"time"
)

// FakePort is a test helper that simulates the module end of the serial
// link using channels, so the transport pumps block on reads the way they
// would against a real port.
//
// Responses can be pushed directly with Send, or scripted with Respond:
// scripts form an ordered sequence, each one armed only after the previous
// script's trigger has been consumed, which makes repeated commands (such
// as two reboots) scriptable independently.
type FakePort struct {
	mu      sync.Mutex
	read    chan []byte
	pending []byte // remainder of the last chunk, only touched by the reader
	written []byte
	scripts []script
	next    int // index of the first unarmed script
	search  int // written offset where the next trigger search starts
	closed  bool
}

type script struct {
	trigger  string
	response string
	delay    time.Duration
}

func NewFakePort() *FakePort {
	return &FakePort{
		read: make(chan []byte, 32),
	}
}

// Respond schedules response to be delivered delay after trigger appears
// in the written stream. Scripts fire in the order they were added. An
// empty response consumes its trigger silently.
func (p *FakePort) Respond(trigger, response string, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts = append(p.scripts, script{trigger: trigger, response: response, delay: delay})
}

// Send queues bytes for the transport to receive, as if the module sent
// them.
func (p *FakePort) Send(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.read <- []byte(data)
	}
}

// Written returns everything the transport has written so far.
func (p *FakePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.written)
}

func (p *FakePort) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		data, ok := <-p.read
		if !ok {
			return 0, io.EOF
		}
		p.pending = data
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *FakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	p.written = append(p.written, b...)
	for p.next < len(p.scripts) {
		s := p.scripts[p.next]
		i := strings.Index(string(p.written[p.search:]), s.trigger)
		if i < 0 {
			break
		}
		p.search += i + len(s.trigger)
		p.next++
		if s.response != "" {
			resp := s.response
			time.AfterFunc(s.delay, func() { p.Send(resp) })
		}
	}
	p.mu.Unlock()
	return len(b), nil
}

func (p *FakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.read)
	return nil
}
