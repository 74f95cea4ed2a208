// Package events publishes attempt lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

const (
	TypeAttemptStarted   = "attempt.started"
	TypeAttemptSubmitted = "attempt.submitted"
	TypeAttemptCancelled = "attempt.cancelled"
)

type Event struct {
	Type      string          `json:"type"`
	Key       string          `json:"key"` // attempt id
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// New builds an event with data marshalled to JSON.
func New(typ, key string, data any) Event {
	e := Event{Type: typ, Key: key, CreatedAt: time.Now().UTC()}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			e.Data = b
		}
	}
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type nop struct{}

func (nop) Publish(context.Context, Event) error { return nil }

// Nop discards every event.
func Nop() Publisher { return nop{} }

type multi []Publisher

// Multi fans out to every publisher. A failing publisher is logged and
// does not stop the others.
func Multi(ps ...Publisher) Publisher {
	var out multi
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (m multi) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			log.Printf("events: publish %s: %v", e.Type, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
