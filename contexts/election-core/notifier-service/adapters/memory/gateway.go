package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"caucus/contexts/election-core/notifier-service/ports"
)

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// Gateway records posted messages in memory. It backs tests and local runs
// and carries its own dedup table so the notifier can be wired standalone.
type Gateway struct {
	mu       sync.RWMutex
	messages []ports.ChatMessage
	dedup    map[string]dedupRecord
}

func NewGateway() *Gateway {
	return &Gateway{dedup: make(map[string]dedupRecord)}
}

func (g *Gateway) Post(_ context.Context, message ports.ChatMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = append(g.messages, message)
	return nil
}

// Messages returns every posted message, optionally filtered by channel.
func (g *Gateway) Messages(channelID string) []ports.ChatMessage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	channelID = strings.TrimSpace(channelID)
	items := make([]ports.ChatMessage, 0, len(g.messages))
	for _, message := range g.messages {
		if channelID == "" || message.ChannelID == channelID {
			items = append(items, message)
		}
	}
	return items
}

func (g *Gateway) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := strings.TrimSpace(eventID)
	existing, ok := g.dedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && time.Now().UTC().After(existing.expiresAt.UTC()) {
			delete(g.dedup, key)
		} else {
			return true, nil
		}
	}
	g.dedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (g *Gateway) Now() time.Time {
	return time.Now().UTC()
}
