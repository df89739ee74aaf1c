package audio

import (
	"context"
	"sync"
)

// Packet is one encoded 20ms Opus frame.
type Packet struct {
	Data []byte
	// Frame is the index of the frame since the start of the resource.
	Frame int64
}

// Buffer is a bounded FIFO of encoded packets between a decoder goroutine
// and the sender. Push blocks while the buffer is full, Pop while it is empty.
type Buffer struct {
	mu       sync.Mutex
	packets  []Packet
	size     int
	readPos  int
	count    int
	closed   bool
	eos      bool
	notEmpty *sync.Cond
	notFull  *sync.Cond
}

func NewBuffer(maxPackets int) *Buffer {
	b := &Buffer{
		packets: make([]Packet, maxPackets),
		size:    maxPackets,
	}
	b.notEmpty = sync.NewCond(&b.mu)
	b.notFull = sync.NewCond(&b.mu)
	return b
}

// Push copies data into the buffer. It returns false once the buffer was
// closed or marked finished.
func (b *Buffer) Push(data []byte, frame int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == b.size && !b.closed && !b.eos {
		b.notFull.Wait()
	}
	if b.closed || b.eos {
		return false
	}

	b.packets[(b.readPos+b.count)%b.size] = Packet{Data: append([]byte(nil), data...), Frame: frame}
	b.count++
	b.notEmpty.Signal()
	return true
}

// Pop returns the oldest packet. It reports false after Close, or after
// MarkEOS once the remaining packets are drained, or when ctx ends.
func (b *Buffer) Pop(ctx context.Context) (Packet, bool) {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.notEmpty.Broadcast()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.closed || ctx.Err() != nil {
			return Packet{}, false
		}
		if b.count > 0 {
			pkt := b.packets[b.readPos]
			b.packets[b.readPos] = Packet{}
			b.readPos = (b.readPos + 1) % b.size
			b.count--
			b.notFull.Signal()
			return pkt, true
		}
		if b.eos {
			return Packet{}, false
		}
		b.notEmpty.Wait()
	}
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// MarkEOS lets readers drain what is left and then stop.
func (b *Buffer) MarkEOS() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eos = true
	b.notEmpty.Broadcast()
	b.notFull.Broadcast()
}

// Close drops everything and wakes all waiters.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.notEmpty.Broadcast()
	b.notFull.Broadcast()
}
