package replycache

import (
	"context"
	"time"
)

const gcInterval = 30 * time.Second

// StartGC runs a background goroutine that sweeps expired slots every 30s,
// adapted from the teacher's TTL worker ticker/ctx.Done() shape.
func (c *Cache) StartGC(ctx context.Context) {
	ticker := time.NewTicker(gcInterval)
	go func() {
		defer ticker.Stop()
		c.logger.Info("reply cache GC started", "interval", gcInterval)
		for {
			select {
			case <-ticker.C:
				c.GC(time.Now())
			case <-ctx.Done():
				c.logger.Info("reply cache GC shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
