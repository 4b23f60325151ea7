package provider

import (
	"context"
	"sync"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// FakeGateway is a hand-written test double standing in for a real provider SDK
// client, used across this module's tests instead of a mocking framework.
type FakeGateway struct {
	mu sync.Mutex

	ProviderID models.ProviderId
	Response   NormalizedResponse
	Err        error
	Delay      func() // optional hook to simulate latency/cancellation races

	Calls []NormalizedRequest
}

// NewFakeGateway constructs a FakeGateway that always returns resp.
func NewFakeGateway(providerID models.ProviderId, resp NormalizedResponse) *FakeGateway {
	return &FakeGateway{ProviderID: providerID, Response: resp}
}

func (f *FakeGateway) Provider() models.ProviderId { return f.ProviderID }

func (f *FakeGateway) Complete(ctx context.Context, req NormalizedRequest) (NormalizedResponse, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, req)
	f.mu.Unlock()

	if f.Delay != nil {
		f.Delay()
	}

	select {
	case <-ctx.Done():
		return NormalizedResponse{}, ctx.Err()
	default:
	}

	if f.Err != nil {
		return NormalizedResponse{}, f.Err
	}
	return f.Response, nil
}

// CallCount reports how many times Complete has been invoked.
func (f *FakeGateway) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
