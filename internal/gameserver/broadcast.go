package gameserver

import (
	"sync"

	"github.com/cory-johannsen/enclaves/internal/game/event"
	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// Update is published to subscribers after every resolved turn and every new game.
type Update struct {
	MatchID     string
	Generation  uint64
	Snapshot    *world.Snapshot
	Events      []event.Event
	SideEffects []event.SideEffect
}

// broadcaster fans updates out to subscribers without blocking. A full
// subscriber channel drops that update.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan<- Update]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan<- Update]struct{})}
}

func (b *broadcaster) subscribe(ch chan<- Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
}

func (b *broadcaster) unsubscribe(ch chan<- Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, ch)
}

func (b *broadcaster) publish(u Update) {
	b.mu.Lock()
	subs := make([]chan<- Update, 0, len(b.subs))
	for ch := range b.subs {
		subs = append(subs, ch)
	}
	b.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- u:
		default:
		}
	}
}
