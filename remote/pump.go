package remote

import "sync"

// Pump delivers pushed values in order to a channel without blocking the producer.
type Pump[T any] struct {
	mu       sync.Mutex
	queue    []T
	finished bool

	wake      chan struct{}
	out       chan T
	done      chan struct{}
	closeOnce sync.Once
}

func NewPump[T any]() *Pump[T] {
	p := &Pump[T]{
		wake: make(chan struct{}, 1),
		out:  make(chan T),
		done: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Pump[T]) C() <-chan T {
	return p.out
}

// Push queues v, returns false after Finish or Close.
func (p *Pump[T]) Push(v T) bool {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return false
	}
	p.queue = append(p.queue, v)
	p.mu.Unlock()
	p.signal()
	return true
}

// Finish rejects further pushes, the channel is closed once the queue drains.
func (p *Pump[T]) Finish() {
	p.mu.Lock()
	p.finished = true
	p.mu.Unlock()
	p.signal()
}

// Close drops queued values and closes the channel.
func (p *Pump[T]) Close() {
	p.mu.Lock()
	p.finished = true
	p.queue = nil
	p.mu.Unlock()
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *Pump[T]) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pump[T]) run() {
	defer close(p.out)
	var zero T
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			finished := p.finished
			p.mu.Unlock()
			if finished {
				return
			}
			select {
			case <-p.wake:
				continue
			case <-p.done:
				return
			}
		}
		v := p.queue[0]
		p.queue[0] = zero
		p.queue = p.queue[1:]
		p.mu.Unlock()

		select {
		case p.out <- v:
		case <-p.done:
			return
		}
	}
}
