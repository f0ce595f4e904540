package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"authzbff/internal/authz"
	"authzbff/internal/observability/logging"
	"authzbff/internal/observability/metrics"
)

// fakeClient answers by resource entity id
type fakeClient struct {
	mu       sync.Mutex
	calls    []string
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    func(id string) time.Duration
	answer   func(ctx context.Context, req *authz.Request) (*authz.Response, error)
}

func (f *fakeClient) IsAuthorized(ctx context.Context, req *authz.Request) (*authz.Response, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, req.Resource.EntityID)
	f.mu.Unlock()

	if f.delay != nil {
		select {
		case <-time.After(f.delay(req.Resource.EntityID)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.answer(ctx, req)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func scenario(name, resourceID string) Scenario {
	return Scenario{
		Name:          name,
		PolicyStoreID: "ps-1",
		Principal:     authz.EntityRef{EntityType: "User", EntityID: "alice"},
		Action:        authz.EntityRef{EntityType: "Action", EntityID: "view"},
		Resource:      authz.EntityRef{EntityType: "Document", EntityID: resourceID},
	}
}

func newTestExecutor(client authz.Client, timeout time.Duration) *Executor {
	return NewExecutor(ExecutorConfig{CallTimeout: timeout}, client, logging.NewNopLogger(), metrics.NewCollector("test"))
}
