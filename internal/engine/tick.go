package engine

import (
	"context"
	"time"
)

// Run drives the periodic tick until the context is cancelled. The tick is
// the engine's only source of spontaneous mutation; once Run returns, no
// further reclassification fires.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	e.logger.Info().Dur("interval", e.tickInterval).Msg("tick loop started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("tick loop stopped")
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}
