package depthcam

import (
	crand "crypto/rand"
	"encoding/hex"

	"github.com/banshee-data/depthscan/internal/depthcam/scan"
)

// subscriberBuffer is the channel depth of each subscription. Events beyond
// it are dropped for that subscriber.
const subscriberBuffer = 64

func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe returns a channel receiving camera and scan events. Slow
// subscribers miss events rather than stall acquisition.
func (c *Camera) Subscribe() (string, <-chan scan.Event) {
	id := randomID()
	ch := make(chan scan.Event, subscriberBuffer)
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subs[id] = ch
	return id, ch
}

// Unsubscribe closes and removes the subscription.
func (c *Camera) Unsubscribe(id string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if ch, ok := c.subs[id]; ok {
		close(ch)
		delete(c.subs, id)
	}
}

// CloseSubscriptions closes every subscriber channel.
func (c *Camera) CloseSubscriptions() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

func (c *Camera) publish(ev scan.Event) {
	if ev.RunID == "" {
		ev.RunID = c.RunID()
	}
	if ev.Time.IsZero() {
		ev.Time = c.clock.Now()
	}
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
