package event

import (
	"sync"
	"time"
)

// Kind enumerates the discrete engine events consumed by presentation
// collaborators.
type Kind int

const (
	UpdateSelected Kind = iota
	UpdateScroll
	UpdateResize
	HideClusters
)

func (k Kind) String() string {
	switch k {
	case UpdateSelected:
		return "update_selected"
	case UpdateScroll:
		return "update_scroll"
	case UpdateResize:
		return "update_resize"
	case HideClusters:
		return "hide_clusters"
	default:
		return "unknown"
	}
}

// ScrollUpdateDelay is the deliberate debounce between a selection update
// and the follow-up scroll recomputation, giving synchronous consumers time
// to finish their own update first.
const ScrollUpdateDelay = 100 * time.Millisecond

// Bus fans discrete events out to subscribers. Unlike Subject there is no
// replay; an event not being listened for is simply gone.
type Bus struct {
	mu   sync.Mutex
	subs []chan Kind
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe() <-chan Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Kind, subjectBuffer)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Publish(k Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		send(ch, k)
	}
}
