package ble

import (
	"sync"
	"time"

	"i4.energy/across/blegw/ring"
)

const (
	// defaultBufferCapacity matches the 64-byte UART buffers the module is
	// normally driven with.
	defaultBufferCapacity = 64

	// pollInterval is the sleep between polls in every deadline-bounded
	// wait loop.
	pollInterval = 500 * time.Microsecond
)

// Transport pairs an RX and a TX ring buffer with a Port.
//
// Two pump goroutines stand in for the UART interrupts: the RX pump is the
// only producer into the RX ring and the TX pump the only consumer of the
// TX ring, with the foreground caller on the opposite end of each. The
// per-ring mutexes are the critical sections guarding the index pairs, the
// equivalent of masking interrupts around an index read.
//
// Inbound bytes are dropped when the RX ring is full: the pump must never
// stall. Outbound writes instead retry, since the foreground can afford to
// wait.
type Transport struct {
	port Port

	rxMu sync.Mutex
	rx   *ring.Buffer

	txMu sync.Mutex
	tx   *ring.Buffer

	// txNotify wakes the TX pump, playing the role of the transmit-ready
	// interrupt enable bit.
	txNotify chan struct{}

	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewTransport returns a transport over port with the default buffer
// capacity. The pumps are not running until Start is called.
func NewTransport(port Port) *Transport {
	return NewTransportSize(port, defaultBufferCapacity)
}

// NewTransportSize is NewTransport with an explicit ring capacity, which
// must be a power of two.
func NewTransportSize(port Port, capacity int) *Transport {
	return &Transport{
		port:     port,
		rx:       ring.New(capacity),
		tx:       ring.New(capacity),
		txNotify: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the RX and TX pumps. Calling Start on a transport that is
// already running is a no-op; buffered bytes are preserved.
func (t *Transport) Start() {
	if t.started {
		return
	}
	t.started = true
	t.wg.Add(2)
	go t.rxPump()
	go t.txPump()
}

// Close stops the pumps and closes the underlying port.
func (t *Transport) Close() error {
	select {
	case <-t.done:
		return ErrAlreadyClosed
	default:
	}
	close(t.done)
	err := t.port.Close() // unblocks the RX pump's pending read
	t.wg.Wait()
	return err
}

// rxPump moves bytes from the port into the RX ring. A full ring drops the
// byte; the receive side keeps accepting input no matter what.
func (t *Transport) rxPump() {
	defer t.wg.Done()
	buf := make([]byte, 32)
	for {
		n, err := t.port.Read(buf)
		for i := 0; i < n; i++ {
			t.rxMu.Lock()
			t.rx.Push(buf[i])
			t.rxMu.Unlock()
		}
		if err != nil {
			return
		}
		select {
		case <-t.done:
			return
		default:
		}
	}
}

// txPump drains the TX ring into the port. When the ring empties it goes
// back to waiting on txNotify, the way the transmit interrupt disables
// itself until the next byte is enqueued.
func (t *Transport) txPump() {
	defer t.wg.Done()
	scratch := make([]byte, 32)
	for {
		select {
		case <-t.done:
			return
		case <-t.txNotify:
		}
		for {
			n := 0
			t.txMu.Lock()
			for n < len(scratch) {
				b, ok := t.tx.Pop()
				if !ok {
					break
				}
				scratch[n] = b
				n++
			}
			t.txMu.Unlock()
			if n == 0 {
				break
			}
			if _, err := t.port.Write(scratch[:n]); err != nil {
				return
			}
		}
	}
}

// Available returns the number of received bytes waiting to be read.
func (t *Transport) Available() int {
	t.rxMu.Lock()
	defer t.rxMu.Unlock()
	return t.rx.Available()
}

// ReadByte pops one received byte. The second return value is false when
// nothing is buffered.
func (t *Transport) ReadByte() (byte, bool) {
	t.rxMu.Lock()
	defer t.rxMu.Unlock()
	return t.rx.Pop()
}

// ReadBytes collects up to len(p) received bytes, polling until the
// deadline. It returns however many bytes were collected, which may be
// fewer than requested.
func (t *Transport) ReadBytes(p []byte, deadline time.Time) int {
	n := 0
	for n < len(p) {
		if b, ok := t.ReadByte(); ok {
			p[n] = b
			n++
			continue
		}
		if !time.Now().Before(deadline) {
			break
		}
		time.Sleep(pollInterval)
	}
	return n
}

// WriteByte enqueues one byte for transmission. It returns false when the
// TX ring is full; the byte is not enqueued.
func (t *Transport) WriteByte(b byte) bool {
	t.txMu.Lock()
	ok := t.tx.Push(b)
	t.txMu.Unlock()
	if ok {
		select {
		case t.txNotify <- struct{}{}:
		default:
		}
	}
	return ok
}

// WriteString enqueues every byte of s, retrying while the TX ring is
// full. This is backpressure, not an error: WriteString only returns once
// the whole string is buffered, and never partially sends.
func (t *Transport) WriteString(s string) {
	for i := 0; i < len(s); i++ {
		for !t.WriteByte(s[i]) {
			time.Sleep(pollInterval)
		}
	}
}

// FlushRx discards all received bytes. Reception itself stays active.
func (t *Transport) FlushRx() {
	t.rxMu.Lock()
	t.rx.Reset()
	t.rxMu.Unlock()
}

// FlushTx discards pending outbound bytes instead of draining them. Bytes
// the pump has already claimed for an in-flight write still go out, like
// the byte sitting in a UART shift register.
func (t *Transport) FlushTx() {
	t.txMu.Lock()
	t.tx.Reset()
	t.txMu.Unlock()
}
