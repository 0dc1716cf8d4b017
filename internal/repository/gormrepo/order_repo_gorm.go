package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"order-admin/internal/domain"
	"order-admin/internal/repository"
)

// PhoneChunkSize bounds the IN list of a single phone history query.
const PhoneChunkSize = 100

const phoneQueryConcurrency = 4

type orderRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db, now: time.Now}
}

func (r *orderRepo) FindByID(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find order %s: %w", orderID, err)
	}
	return &o, nil
}

func (r *orderRepo) FindByUser(ctx context.Context, userID string, page, pageSize int, f domain.OrderFilters) (*domain.OrderPage, error) {
	q := r.db.WithContext(ctx).Model(&domain.Order{}).Where("user_id = ?", userID)
	q = applyFilters(q, f).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	out := domain.OrderPage{Orders: []domain.Order{}, TotalCount: total}
	if total == 0 {
		return &out, nil
	}
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&out.Orders).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return &out, nil
}

func applyFilters(q *gorm.DB, f domain.OrderFilters) *gorm.DB {
	if s := strings.TrimSpace(f.SearchQuery); s != "" {
		like := "%" + s + "%"
		q = q.Where("(order_code LIKE ? OR customer_name LIKE ? OR customer_phone LIKE ?)", like, like, like)
	}
	if st := strings.TrimSpace(f.Status); st != "" && !strings.EqualFold(st, "all") {
		q = q.Where("status = ?", strings.ToUpper(st))
	}
	if tier := strings.TrimSpace(f.RiskScore); tier != "" {
		if strings.EqualFold(tier, "unscored") {
			q = q.Where("risk_score IS NULL")
		} else if lo, hi, ok := domain.ScoreRange(tier); ok {
			q = q.Where("risk_score BETWEEN ? AND ?", lo, hi)
		}
	}
	switch pm := strings.ToUpper(strings.TrimSpace(f.PaymentMethod)); pm {
	case "", "ALL":
	case domain.PaymentCOD:
		q = q.Where("(payment_method IS NULL OR payment_method = '' OR UPPER(payment_method) = ?)", domain.PaymentCOD)
	case "PREPAID":
		q = q.Where("payment_method IS NOT NULL AND payment_method <> '' AND UPPER(payment_method) <> ?", domain.PaymentCOD)
	default:
		q = q.Where("UPPER(payment_method) = ?", pm)
	}
	return q
}

func (r *orderRepo) Update(ctx context.Context, orderID, userID string, fields map[string]any) (*domain.Order, error) {
	err := r.db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND user_id = ?", orderID, userID).
		Updates(fields).Error
	if err != nil {
		return nil, fmt.Errorf("update order %s: %w", orderID, err)
	}
	return r.FindByID(ctx, userID, orderID)
}

func (r *orderRepo) FindEvents(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	var out []domain.OrderEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("find events for %s: %w", orderID, err)
	}
	return out, nil
}

func (r *orderRepo) InsertEvent(ctx context.Context, orderID, eventType string, payload map[string]any) (*domain.OrderEvent, error) {
	ev := newEvent(orderID, eventType, payload, r.now())
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, fmt.Errorf("insert %s event for %s: %w", eventType, orderID, err)
	}
	return ev, nil
}

func newEvent(orderID, eventType string, payload map[string]any, at time.Time) *domain.OrderEvent {
	if payload == nil {
		payload = map[string]any{}
	}
	return &domain.OrderEvent{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		EventType: eventType,
		Payload:   payload,
		CreatedAt: at.UTC(),
	}
}

func (r *orderRepo) FindPastOrdersByPhones(ctx context.Context, userID string, phones []string) ([]domain.PhoneOrderStatus, error) {
	phones = uniquePhones(phones)
	chunks := make([][]domain.PhoneOrderStatus, (len(phones)+PhoneChunkSize-1)/PhoneChunkSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(phoneQueryConcurrency)
	for i := range chunks {
		i := i
		start := i * PhoneChunkSize
		end := start + PhoneChunkSize
		if end > len(phones) {
			end = len(phones)
		}
		g.Go(func() error {
			var rows []domain.PhoneOrderStatus
			err := r.db.WithContext(gctx).
				Model(&domain.Order{}).
				Select("customer_phone AS phone, status").
				Where("user_id = ? AND customer_phone IN ?", userID, phones[start:end]).
				Scan(&rows).Error
			if err != nil {
				return fmt.Errorf("past orders chunk %d-%d: %w", start, end, err)
			}
			chunks[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.PhoneOrderStatus, 0, len(phones))
	for _, rows := range chunks {
		out = append(out, rows...)
	}
	return out, nil
}

func uniquePhones(phones []string) []string {
	seen := make(map[string]struct{}, len(phones))
	out := make([]string, 0, len(phones))
	for _, p := range phones {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ProcessRefund stores the refund and its audit event in one transaction.
func (r *orderRepo) ProcessRefund(ctx context.Context, orderID string, amount int64, note string) error {
	now := r.now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		refund := &domain.Refund{ID: uuid.New().String(), OrderID: orderID, Amount: amount, Note: note, CreatedAt: now}
		if err := tx.Create(refund).Error; err != nil {
			return fmt.Errorf("insert refund: %w", err)
		}
		ev := newEvent(orderID, domain.EventRefundProcessed, map[string]any{
			"refund_id": refund.ID,
			"amount":    amount,
			"note":      note,
		}, now)
		if err := tx.Create(ev).Error; err != nil {
			return fmt.Errorf("insert refund event: %w", err)
		}
		return nil
	})
}

func (r *orderRepo) ProcessReturn(ctx context.Context, userID, orderID string, customerPays bool, customerAmount, shopAmount int64, note string) error {
	now := r.now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ret := &domain.Return{
			ID:             uuid.New().String(),
			OrderID:        orderID,
			UserID:         userID,
			CustomerPays:   customerPays,
			CustomerAmount: customerAmount,
			ShopAmount:     shopAmount,
			Note:           note,
			CreatedAt:      now,
		}
		if err := tx.Create(ret).Error; err != nil {
			return fmt.Errorf("insert return: %w", err)
		}
		ev := newEvent(orderID, domain.EventReturnProcessed, map[string]any{
			"return_id":       ret.ID,
			"customer_pays":   customerPays,
			"customer_amount": customerAmount,
			"shop_amount":     shopAmount,
			"amount":          customerAmount + shopAmount,
			"note":            note,
		}, now)
		if err := tx.Create(ev).Error; err != nil {
			return fmt.Errorf("insert return event: %w", err)
		}
		return nil
	})
}
