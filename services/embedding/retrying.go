package embedding

import (
	"context"

	"go.uber.org/zap"

	"github.com/upb/rag-pipeline/services/retry"
)

// Retrying applies a bounded retry policy to a backend. Only transient
// failures are retried; the last error is returned once the policy is spent.
type Retrying struct {
	inner  Embedder
	policy retry.Policy
	logger *zap.Logger
}

var _ Embedder = (*Retrying)(nil)

// NewRetrying wraps e with policy. A policy allowing a single attempt returns
// e unchanged.
func NewRetrying(e Embedder, policy retry.Policy, logger *zap.Logger) Embedder {
	if !policy.Enabled() {
		return e
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{inner: e, policy: policy, logger: logger}
}

func (r *Retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	res := retry.Do(ctx, r.policy, nil, func(ctx context.Context) ([]float32, error) {
		return r.inner.Embed(ctx, text)
	})
	r.report("embed", res.Attempts, res.Outcome, res.Err)
	return res.Value, res.Err
}

func (r *Retrying) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	res := retry.Do(ctx, r.policy, nil, func(ctx context.Context) ([][]float32, error) {
		return r.inner.EmbedBatch(ctx, texts)
	})
	r.report("embed_batch", res.Attempts, res.Outcome, res.Err)
	return res.Value, res.Err
}

func (r *Retrying) Dimension() int { return r.inner.Dimension() }

func (r *Retrying) Model() string { return ModelName(r.inner) }

func (r *Retrying) report(op string, attempts int, outcome retry.Outcome, err error) {
	if attempts <= 1 && err == nil {
		return
	}
	fields := []zap.Field{
		zap.String("operation", op),
		zap.Int("attempts", attempts),
		zap.String("outcome", outcome.String()),
	}
	if err != nil {
		r.logger.Warn("embedding retries ended with error", append(fields, zap.Error(err))...)
		return
	}
	r.logger.Info("embedding succeeded after retry", fields...)
}
