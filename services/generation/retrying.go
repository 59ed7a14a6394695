package generation

import (
	"context"

	"go.uber.org/zap"

	"github.com/upb/rag-pipeline/services/retry"
)

// RetryingBackend retries transient backend failures under a bounded policy.
// The retries share the caller's deadline, so they never extend the
// generation timeout.
type RetryingBackend struct {
	inner  Backend
	policy retry.Policy
	logger *zap.Logger
}

// NewRetryingBackend wraps b. A policy allowing a single attempt returns b.
func NewRetryingBackend(b Backend, policy retry.Policy, logger *zap.Logger) Backend {
	if !policy.Enabled() {
		return b
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingBackend{inner: b, policy: policy, logger: logger}
}

func (r *RetryingBackend) Name() string { return r.inner.Name() }

func (r *RetryingBackend) Complete(ctx context.Context, req *Request) (string, error) {
	res := retry.Do(ctx, r.policy, nil, func(ctx context.Context) (string, error) {
		return r.inner.Complete(ctx, req)
	})
	if res.Attempts > 1 || res.Err != nil {
		r.logger.Info("generation retry finished",
			zap.String("backend", r.inner.Name()),
			zap.Int("attempts", res.Attempts),
			zap.String("outcome", res.Outcome.String()),
			zap.Error(res.Err))
	}
	return res.Value, res.Err
}
