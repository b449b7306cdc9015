package identity

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vigilkey/vigil-backend/interfaces"
)

// MockResolver mocks the IdentityResolver interface for tests.
type MockResolver struct {
	mock.Mock
}

// Resolve mocks the lookup; behavior is configured per test.
func (m *MockResolver) Resolve(ctx context.Context, username interfaces.Username) (interfaces.Pubkey, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(interfaces.Pubkey), args.Error(1)
}
