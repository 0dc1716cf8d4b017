package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"order-admin/internal/actions"
	"order-admin/internal/domain"
	rabbit "order-admin/internal/infra/rabbitmq"
	"order-admin/internal/metrics"
)

// PerformAction runs one order action and returns the refreshed detail.
// The action is re-resolved against the stored order first, so a stale
// client cannot trigger a transition that is no longer legal. Once started,
// the steps run to completion or first failure even if ctx is cancelled.
func (s *OrderService) PerformAction(ctx context.Context, userID, orderID string, action actions.Action, reason string) (*OrderDetail, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	order, events, err := s.load(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	panel := actions.NewPanel(*order, events, s.actionHandlers(userID),
		actions.WithGate(s.gates.For(orderID)),
		actions.OnUpdated(func(domain.Order) { s.cache.Invalidate(bg, userID) }),
	)

	err = panel.Activate(bg, action, reason)
	result := actionResult(err)
	metrics.OrderActionsTotal.WithLabelValues(string(action), result).Inc()
	if err != nil {
		logf := s.log.Warn
		if result == "error" {
			// earlier steps may have persisted
			s.cache.Invalidate(bg, userID)
			logf = s.log.Error
		}
		logf("order action failed",
			zap.String("order_id", orderID),
			zap.String("action", string(action)),
			zap.String("result", result),
			zap.Error(err))
		if errors.Is(err, actions.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %s on %s", ErrActionNotAllowed, action.Label(), order.Status)
		}
		return nil, err
	}

	detail, err := s.GetOrderDetail(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	s.publish(rabbit.PatternOrderUpdated, domain.OrderUpdatedEvent{
		OrderID:   orderID,
		UserID:    userID,
		Action:    string(action),
		Status:    detail.Order.Status,
		UpdatedAt: s.now().UTC(),
	})
	return detail, nil
}

func actionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, actions.ErrBusy):
		return "busy"
	case errors.Is(err, actions.ErrUnavailable), errors.Is(err, actions.ErrReasonRequired):
		return "rejected"
	default:
		return "error"
	}
}

type step func(ctx context.Context) error

// runSteps executes steps in order and stops at the first failure. Steps
// that already ran are not rolled back.
func runSteps(ctx context.Context, steps ...step) error {
	for _, st := range steps {
		if err := st(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderService) setFields(userID, orderID string, fields map[string]any) step {
	return func(ctx context.Context) error {
		o, err := s.repo.Update(ctx, orderID, userID, fields)
		if err != nil {
			return err
		}
		if o == nil {
			return ErrOrderNotFound
		}
		return nil
	}
}

func (s *OrderService) logEvent(orderID, eventType string, payload map[string]any) step {
	return func(ctx context.Context) error {
		if _, err := s.repo.InsertEvent(ctx, orderID, eventType, payload); err != nil {
			return err
		}
		metrics.OrderEventsInsertedTotal.WithLabelValues(eventType).Inc()
		return nil
	}
}

func (s *OrderService) actionHandlers(userID string) map[actions.Action]actions.Handler {
	return map[actions.Action]actions.Handler{
		actions.Approve: func(ctx context.Context, o domain.Order, _ string) error {
			now := s.now().UTC()
			return runSteps(ctx,
				s.setFields(userID, o.ID, map[string]any{"status": domain.StatusOrderApproved, "approved_at": now}),
				s.logEvent(o.ID, domain.EventOrderApproved, nil),
				s.setFields(userID, o.ID, map[string]any{"status": domain.StatusOrderConfirmationSent, "confirmation_sent_at": now}),
				s.logEvent(o.ID, domain.EventConfirmationSent, nil),
			)
		},
		actions.Reject: func(ctx context.Context, o domain.Order, reason string) error {
			reason = strings.TrimSpace(reason)
			return runSteps(ctx,
				s.setFields(userID, o.ID, map[string]any{"status": domain.StatusOrderRejected, "cancelled_at": s.now().UTC()}),
				s.logEvent(o.ID, domain.EventOrderRejected, map[string]any{"reason": reason}),
			)
		},
		actions.CustomerConfirm: func(ctx context.Context, o domain.Order, _ string) error {
			return runSteps(ctx,
				s.setFields(userID, o.ID, map[string]any{"status": domain.StatusCustomerConfirmed, "customer_confirmed_at": s.now().UTC()}),
				s.logEvent(o.ID, domain.EventCustomerConfirmed, nil),
			)
		},
		actions.CustomerCancel: func(ctx context.Context, o domain.Order, _ string) error {
			return runSteps(ctx,
				s.setFields(userID, o.ID, map[string]any{"status": domain.StatusCustomerCancelled, "cancelled_at": s.now().UTC()}),
				s.logEvent(o.ID, domain.EventCustomerCancelled, nil),
			)
		},
		actions.SendQRLink: func(ctx context.Context, o domain.Order, _ string) error {
			return runSteps(ctx,
				s.setFields(userID, o.ID, map[string]any{"qr_sent_at": s.now().UTC()}),
				s.logEvent(o.ID, domain.EventQRPaymentLinkSent, nil),
			)
		},
		actions.SimulateQRPaid: func(ctx context.Context, o domain.Order, _ string) error {
			return runSteps(ctx,
				s.setFields(userID, o.ID, map[string]any{"paid_at": s.now().UTC()}),
				s.setFields(userID, o.ID, map[string]any{"status": domain.StatusOrderPaid}),
				s.logEvent(o.ID, domain.EventPaymentReceived, map[string]any{"method": "qr"}),
			)
		},
		actions.StartDelivery: func(ctx context.Context, o domain.Order, _ string) error {
			now := s.now().UTC()
			return runSteps(ctx,
				s.setFields(userID, o.ID, map[string]any{"status": domain.StatusDelivering, "shipped_at": now}),
				s.logEvent(o.ID, domain.EventDelivering, map[string]any{"shipped_at": now.Format(time.RFC3339)}),
			)
		},
		actions.MarkCompleted: func(ctx context.Context, o domain.Order, _ string) error {
			now := s.now().UTC()
			return runSteps(ctx,
				s.setFields(userID, o.ID, map[string]any{"status": domain.StatusCompleted, "completed_at": now}),
				s.logEvent(o.ID, domain.EventOrderCompleted, map[string]any{"completed_at": now.Format(time.RFC3339)}),
			)
		},
		actions.SimulatePaymentReceived: func(ctx context.Context, o domain.Order, _ string) error {
			return runSteps(ctx,
				s.setFields(userID, o.ID, map[string]any{"paid_at": s.now().UTC()}),
				s.logEvent(o.ID, domain.EventPaymentReceived, map[string]any{"method": "cod"}),
			)
		},
	}
}
