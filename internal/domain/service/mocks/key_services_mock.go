package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/clusterkeys/internal/domain/models"
)

// MockKeyMaterialSource is a mock implementation of KeyMaterialSource
type MockKeyMaterialSource struct {
	mock.Mock
}

func (m *MockKeyMaterialSource) GenerateSecret(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockKeyEventPublisher is a mock implementation of KeyEventPublisher
type MockKeyEventPublisher struct {
	mock.Mock
}

func (m *MockKeyEventPublisher) Publish(ctx context.Context, event *models.KeyEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockKeyRepository is a mock implementation of repository.KeyRepository
type MockKeyRepository struct {
	mock.Mock
}

func (m *MockKeyRepository) FindAll(ctx context.Context, purpose string) ([]*models.KeyDocument, error) {
	args := m.Called(ctx, purpose)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.KeyDocument), args.Error(1)
}

func (m *MockKeyRepository) Insert(ctx context.Context, doc *models.KeyDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

// MockClusterClock is a mock implementation of ClusterClock
type MockClusterClock struct {
	mock.Mock
}

func (m *MockClusterClock) Now() models.LogicalTime {
	args := m.Called()
	return args.Get(0).(models.LogicalTime)
}
