package identity

import (
	"context"
	"fmt"
	"time"
)

// MockNotFoundNIN is the NIN the mock registry never knows.
const MockNotFoundNIN = "00000000000"

// MockProvider returns canned records for local development.
type MockProvider struct {
	delay time.Duration
}

// NewMockProvider simulates registry latency of delay.
func NewMockProvider(delay time.Duration) *MockProvider {
	return &MockProvider{delay: delay}
}

func (provider *MockProvider) FetchByNIN(ctx context.Context, nin string) (Record, error) {
	if err := provider.wait(ctx); err != nil {
		return Record{}, err
	}
	if nin == MockNotFoundNIN {
		return Record{}, fmt.Errorf("%w: nin not in mock registry", ErrIdentityNotFound)
	}
	return Record{
		Identifier:  nin,
		FirstName:   "JOHN",
		LastName:    "DOE",
		MiddleName:  "MOCK",
		Gender:      "Male",
		DateOfBirth: "1990-01-01",
		Phone:       "08012345678",
		State:       "Lagos",
		LGA:         "Ikeja",
		Photo:       "/uploads/default-avatar.png",
	}, nil
}

func (provider *MockProvider) FetchByBVN(ctx context.Context, bvn string) (Record, error) {
	if err := provider.wait(ctx); err != nil {
		return Record{}, err
	}
	return Record{
		Identifier:  bvn,
		FirstName:   "JANE",
		LastName:    "DOE",
		Gender:      "Female",
		DateOfBirth: "1992-05-15",
	}, nil
}

func (provider *MockProvider) wait(ctx context.Context) error {
	if provider.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(provider.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, ctx.Err())
	case <-timer.C:
		return nil
	}
}
