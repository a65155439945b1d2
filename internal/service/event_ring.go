package service

import "github.com/iconidentify/cardvault/internal/domain"

// eventRing holds the newest notifications, overwriting the oldest when full.
// It is not safe for concurrent use.
type eventRing struct {
	buf  []domain.Event
	next int
	size int
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{buf: make([]domain.Event, capacity)}
}

func (r *eventRing) push(e domain.Event) {
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// newest walks the buffer from the latest notification back and collects up
// to limit matches. A limit of zero or less collects every match.
func (r *eventRing) newest(limit int, match func(domain.Event) bool) []domain.Event {
	out := make([]domain.Event, 0, min(max(limit, 0), r.size))
	for i := 1; i <= r.size; i++ {
		e := r.buf[(r.next-i+len(r.buf))%len(r.buf)]
		if match != nil && !match(e) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
