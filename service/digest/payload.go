package digest

import (
	"context"
	"sync"

	"github.com/Ahmed-Sermani/motorec/pipeline"
)

var (
	_ pipeline.Payload = (*digestPayload)(nil)

	payloadPool = sync.Pool{
		New: func() any { return new(digestPayload) },
	}
)

type digestPayload struct {
	ActorID string
	Kind    string
	Entries []Entry
}

func (p *digestPayload) Clone() pipeline.Payload {
	newp := payloadPool.Get().(*digestPayload)
	newp.ActorID = p.ActorID
	newp.Kind = p.Kind
	newp.Entries = append(newp.Entries[:0], p.Entries...)
	return newp
}

// MarkAsProcessed resets the payload and returns it to the pool. The entries
// slice keeps its capacity for the next actor.
func (p *digestPayload) MarkAsProcessed() {
	p.ActorID = ""
	p.Kind = ""
	p.Entries = p.Entries[:0]
	payloadPool.Put(p)
}

// actorSource emits one payload per actor.
type actorSource struct {
	actors []string
	cur    int
}

func (s *actorSource) Next(context.Context) bool {
	if s.cur >= len(s.actors) {
		return false
	}
	s.cur++
	return true
}

func (s *actorSource) Payload() pipeline.Payload {
	p := payloadPool.Get().(*digestPayload)
	p.ActorID = s.actors[s.cur-1]
	return p
}

func (s *actorSource) Error() error { return nil }

// actorSink counts the distinct actors that reached the end of the
// pipeline. Broadcasting stages emit one payload per publisher.
type actorSink struct {
	seen map[string]struct{}
}

func (s *actorSink) Consume(_ context.Context, p pipeline.Payload) error {
	s.seen[p.(*digestPayload).ActorID] = struct{}{}
	return nil
}

func (s *actorSink) count() int { return len(s.seen) }
