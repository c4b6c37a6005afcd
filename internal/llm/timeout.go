package llm

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
)

var tracer = otel.Tracer("klinik.internal.llm")

// LatencyObserver records how long oracle calls take.
type LatencyObserver interface {
	ObserveOracleLatency(outcome string, d time.Duration)
}

// BoundedClient enforces a deadline on every call and reports failures as
// external-service errors.
type BoundedClient struct {
	next     Client
	timeout  time.Duration
	observer LatencyObserver
}

func NewBoundedClient(next Client, timeout time.Duration, observer LatencyObserver) *BoundedClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &BoundedClient{next: next, timeout: timeout, observer: observer}
}

func (c *BoundedClient) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, span := tracer.Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.Int("llm.messages", len(req.Messages)),
		attribute.String("llm.model", req.Model),
	)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.next.Complete(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	if c.observer != nil {
		c.observer.ObserveOracleLatency(outcome, time.Since(start))
	}
	if err != nil {
		return Response{}, apperr.External("oracle", err)
	}
	span.SetAttributes(attribute.Int("llm.output_tokens", int(resp.Usage.OutputTokens)))
	return resp, nil
}
