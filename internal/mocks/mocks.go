package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"order-admin/internal/domain"
	"order-admin/internal/infra"
)

type MockOrderRepository struct {
	mock.Mock
}

type MockDownloader struct {
	mock.Mock
}

type MockPublisher struct {
	mock.Mock
}

type MockOrderListCache struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, pattern string, data any) error {
	args := m.Called(ctx, pattern, data)
	return args.Error(0)
}

func (m *MockDownloader) Fetch(ctx context.Context, rawURL, filename string) (*infra.File, error) {
	args := m.Called(ctx, rawURL, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.File), args.Error(1)
}

func (m *MockOrderListCache) Get(ctx context.Context, userID, query string) (*domain.OrderPage, bool) {
	args := m.Called(ctx, userID, query)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*domain.OrderPage), args.Bool(1)
}

func (m *MockOrderListCache) Set(ctx context.Context, userID, query string, page *domain.OrderPage) {
	m.Called(ctx, userID, query, page)
}

func (m *MockOrderListCache) Invalidate(ctx context.Context, userID string) {
	m.Called(ctx, userID)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByUser(ctx context.Context, userID string, page, pageSize int, filters domain.OrderFilters) (*domain.OrderPage, error) {
	args := m.Called(ctx, userID, page, pageSize, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderPage), args.Error(1)
}

func (m *MockOrderRepository) Update(ctx context.Context, orderID, userID string, fields map[string]any) (*domain.Order, error) {
	args := m.Called(ctx, orderID, userID, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindEvents(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.OrderEvent), args.Error(1)
}

func (m *MockOrderRepository) InsertEvent(ctx context.Context, orderID, eventType string, payload map[string]any) (*domain.OrderEvent, error) {
	args := m.Called(ctx, orderID, eventType, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderEvent), args.Error(1)
}

func (m *MockOrderRepository) FindPastOrdersByPhones(ctx context.Context, userID string, phones []string) ([]domain.PhoneOrderStatus, error) {
	args := m.Called(ctx, userID, phones)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PhoneOrderStatus), args.Error(1)
}

func (m *MockOrderRepository) ProcessRefund(ctx context.Context, orderID string, amount int64, note string) error {
	args := m.Called(ctx, orderID, amount, note)
	return args.Error(0)
}

func (m *MockOrderRepository) ProcessReturn(ctx context.Context, userID, orderID string, customerPays bool, customerAmount, shopAmount int64, note string) error {
	args := m.Called(ctx, userID, orderID, customerPays, customerAmount, shopAmount, note)
	return args.Error(0)
}
