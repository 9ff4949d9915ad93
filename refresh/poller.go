package refresh

import (
	"log"
	"sync"
	"time"

	"staybook/realtime"
)

const DefaultFallbackInterval = 30 * time.Second

// StateSource is the lifecycle side of realtime.Manager.
type StateSource interface {
	State() realtime.State
	OnStateChange(h realtime.StateHandler)
}

// Poller runs tick on a fixed interval whenever the live channel is not
// connected, and stops as soon as it is.
type Poller struct {
	interval time.Duration
	tick     func()

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

func NewPoller(interval time.Duration, tick func()) *Poller {
	if interval <= 0 {
		interval = DefaultFallbackInterval
	}
	return &Poller{interval: interval, tick: tick}
}

// Watch follows src and applies its current state right away, so a channel
// that never connects is still covered.
func (p *Poller) Watch(src StateSource) {
	src.OnStateChange(p.Observe)
	p.Observe(src.State())
}

func (p *Poller) Observe(s realtime.State) {
	if s == realtime.StateConnected {
		p.halt()
		return
	}
	p.start()
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

// Close stops the loop for good.
func (p *Poller) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.halt()
}

func (p *Poller) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	log.Printf("[refresh] live channel down, polling every %s", p.interval)
	go p.loop(p.stop, p.done)
}

// halt returns once the loop has exited, so no tick runs after it.
func (p *Poller) halt() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	log.Printf("[refresh] fallback polling stopped")
}

func (p *Poller) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			p.safeTick()
		}
	}
}

func (p *Poller) safeTick() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[refresh] poll tick panicked: %v", r)
		}
	}()
	p.tick()
}
