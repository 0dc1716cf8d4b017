package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"order-admin/internal/aftersale"
	"order-admin/internal/domain"
	rabbit "order-admin/internal/infra/rabbitmq"
	"order-admin/internal/metrics"
)

// AppendEvent records an audit event from an external writer such as the
// risk evaluator. The type is stored in canonical form.
func (s *OrderService) AppendEvent(ctx context.Context, userID, orderID, eventType string, payload map[string]any) (*domain.OrderEvent, error) {
	eventType = domain.CanonicalEventType(eventType)
	if eventType == "" {
		return nil, fmt.Errorf("%w: event_type is required", ErrInvalidInput)
	}
	if _, err := s.GetOrderById(ctx, userID, orderID); err != nil {
		return nil, err
	}

	ev, err := s.repo.InsertEvent(ctx, orderID, eventType, payload)
	if err != nil {
		return nil, err
	}
	metrics.OrderEventsInsertedTotal.WithLabelValues(eventType).Inc()
	s.publish(rabbit.PatternOrderEventRecorded, ev)
	return ev, nil
}

func (s *OrderService) Refund(ctx context.Context, userID, orderID, amount, note string) error {
	refund, err := aftersale.NewRefund(amount, note)
	if err != nil {
		return err
	}
	if _, err := s.GetOrderById(ctx, userID, orderID); err != nil {
		return err
	}

	if err := s.repo.ProcessRefund(ctx, orderID, refund.Amount, refund.Note); err != nil {
		s.log.Error("refund failed", zap.String("order_id", orderID), zap.Int64("amount", refund.Amount), zap.Error(err))
		return err
	}
	metrics.RefundsTotal.Inc()
	metrics.OrderEventsInsertedTotal.WithLabelValues(domain.EventRefundProcessed).Inc()
	s.cache.Invalidate(ctx, userID)
	return nil
}

type ReturnRequest struct {
	Payer          string
	CustomerAmount *int64
	ShopAmount     int64
	Note           string
}

// Return records a return. A blank payer means the customer pays; an
// omitted customer amount keeps the default fee.
func (s *OrderService) Return(ctx context.Context, userID, orderID string, req ReturnRequest) error {
	form := aftersale.NewReturnForm()
	if p := strings.ToLower(strings.TrimSpace(req.Payer)); p != "" {
		if err := form.SetPayer(aftersale.Payer(p)); err != nil {
			return err
		}
	}
	if req.CustomerAmount != nil {
		if *req.CustomerAmount < 0 {
			return aftersale.ErrInvalidAmount
		}
		form.SetCustomerAmount(*req.CustomerAmount)
	}
	if req.ShopAmount < 0 {
		return aftersale.ErrInvalidAmount
	}
	form.ShopAmount = req.ShopAmount
	form.Note = req.Note

	if _, err := s.GetOrderById(ctx, userID, orderID); err != nil {
		return err
	}

	sub := form.Submission()
	err := s.repo.ProcessReturn(ctx, userID, orderID, sub.CustomerPays, sub.CustomerAmount, sub.ShopAmount, sub.Note)
	if err != nil {
		s.log.Error("return failed", zap.String("order_id", orderID), zap.Error(err))
		return err
	}
	metrics.ReturnsTotal.Inc()
	metrics.OrderEventsInsertedTotal.WithLabelValues(domain.EventReturnProcessed).Inc()
	s.cache.Invalidate(ctx, userID)
	return nil
}
