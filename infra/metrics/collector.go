package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/infra/logger"
	"github.com/kilianp07/smartcharge/internal/eventbus"
)

// StartEventCollector subscribes to bus and records every advice event in
// sink until ctx is cancelled or the bus is closed. The returned channel is
// closed once the collector has stopped.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[coremetrics.AdviceEvent], sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := sink.RecordAdvice(ev); err != nil {
					log.Warnf("record advice %s: %v", ev.RequestID, err)
				}
			}
		}
	}()
	return done
}
