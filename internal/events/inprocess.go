package events

import (
	"context"
	"sync"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"go.uber.org/zap"
)

// InProcess hands events to a local handler on background goroutines. It is
// used when Kafka is disabled.
type InProcess struct {
	handler Handler
	metrics *metrics.Collector
	log     *zap.Logger
	wg      sync.WaitGroup
}

func NewInProcess(h Handler, m *metrics.Collector, log *zap.Logger) *InProcess {
	return &InProcess{handler: h, metrics: m, log: log.Named("events")}
}

func (p *InProcess) Publish(ctx context.Context, e Event) error {
	env, err := Envelope(e, time.Now())
	if err != nil {
		p.record(e.Type, "error")
		return err
	}
	p.record(e.Type, "ok")

	// The request context ends with the response; handling outlives it.
	hctx := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.handler.Handle(hctx, env); err != nil {
			p.log.Error("event handler failed",
				zap.String("type", env.Type()),
				zap.String("subject", env.Subject()),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Close waits for in-flight handlers.
func (p *InProcess) Close() error {
	p.wg.Wait()
	return nil
}

func (p *InProcess) record(eventType, result string) {
	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(eventType, result).Inc()
	}
}
