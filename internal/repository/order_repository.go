package repository

import (
	"context"

	"order-admin/internal/domain"
)

// OrderRepository is the data-access surface the admin service needs.
// Lookups return (nil, nil) when nothing matches.
type OrderRepository interface {
	FindByID(ctx context.Context, userID, orderID string) (*domain.Order, error)
	FindByUser(ctx context.Context, userID string, page, pageSize int, filters domain.OrderFilters) (*domain.OrderPage, error)
	// Update applies fields to the order owned by userID and returns the stored row.
	Update(ctx context.Context, orderID, userID string, fields map[string]any) (*domain.Order, error)

	FindEvents(ctx context.Context, orderID string) ([]domain.OrderEvent, error)
	InsertEvent(ctx context.Context, orderID, eventType string, payload map[string]any) (*domain.OrderEvent, error)

	// FindPastOrdersByPhones queries in chunks to stay under backend IN-list limits.
	FindPastOrdersByPhones(ctx context.Context, userID string, phones []string) ([]domain.PhoneOrderStatus, error)

	ProcessRefund(ctx context.Context, orderID string, amount int64, note string) error
	ProcessReturn(ctx context.Context, userID, orderID string, customerPays bool, customerAmount, shopAmount int64, note string) error
}
