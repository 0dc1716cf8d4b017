package domain

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Canonical event types. Writers always use these; readers also accept the
// legacy aliases listed in eventAliases.
const (
	EventOrderCreated         = "order_created"
	EventRiskEvaluated        = "risk_evaluated"
	EventVerificationRequired = "verification_required"
	EventOrderApproved        = "order_approved"
	EventOrderRejected        = "order_rejected"
	EventConfirmationSent     = "confirmation_sent"
	EventCustomerConfirmed    = "customer_confirmed"
	EventCustomerCancelled    = "customer_cancelled"
	EventQRPaymentLinkSent    = "qr_payment_link_sent"
	EventPaymentReceived      = "payment_received"
	EventDelivering           = "delivering"
	EventOrderCompleted       = "order_completed"
	EventRefundProcessed      = "refund_processed"
	EventReturnProcessed      = "return_processed"
)

var eventAliases = map[string]string{
	"ORDER_CREATED":           EventOrderCreated,
	"RISK_EVALUATED":          EventRiskEvaluated,
	"VERIFICATION_REQUIRED":   EventVerificationRequired,
	"ORDER_APPROVED":          EventOrderApproved,
	"ORDER_REJECTED":          EventOrderRejected,
	"ORDER_CONFIRMATION_SENT": EventConfirmationSent,
	"CONFIRMATION_SENT":       EventConfirmationSent,
	"CUSTOMER_CONFIRMED":      EventCustomerConfirmed,
	"CUSTOMER_CANCELLED":      EventCustomerCancelled,
	"ORDER_CANCELLED":         EventCustomerCancelled,
	"QR_PAYMENT_LINK_SENT":    EventQRPaymentLinkSent,
	"QR_SENT":                 EventQRPaymentLinkSent,
	"PAYMENT_RECEIVED":        EventPaymentReceived,
	"ORDER_PAID":              EventPaymentReceived,
	"QR_PAID":                 EventPaymentReceived,
	"DELIVERING":              EventDelivering,
	"ORDER_SHIPPED":           EventDelivering,
	"SHIPPED":                 EventDelivering,
	"ORDER_COMPLETED":         EventOrderCompleted,
	"COMPLETED":               EventOrderCompleted,
	"REFUND_PROCESSED":        EventRefundProcessed,
	"RETURN_PROCESSED":        EventReturnProcessed,
}

// CanonicalEventType resolves a stored event type to its canonical form.
// Matching is case-insensitive; unknown types are returned trimmed.
func CanonicalEventType(raw string) string {
	t := strings.TrimSpace(raw)
	if c, ok := eventAliases[strings.ToUpper(t)]; ok {
		return c
	}
	return t
}

// OrderEvent is an append-only audit record.
type OrderEvent struct {
	ID        string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID   string            `json:"order_id" gorm:"type:varchar(36);not null;index:idx_order_events_order_created"`
	EventType string            `json:"event_type" gorm:"type:varchar(64);not null"`
	Payload   datatypes.JSONMap `json:"payload"`
	CreatedAt time.Time         `json:"created_at" gorm:"index:idx_order_events_order_created"`
}

func (OrderEvent) TableName() string {
	return "order_events"
}

// HasEvent reports whether any event canonicalizes to eventType.
func HasEvent(events []OrderEvent, eventType string) bool {
	want := CanonicalEventType(eventType)
	for i := range events {
		if CanonicalEventType(events[i].EventType) == want {
			return true
		}
	}
	return false
}

// OrderUpdatedEvent is published after every successful order action.
type OrderUpdatedEvent struct {
	OrderID   string      `json:"orderId"`
	UserID    string      `json:"userId"`
	Action    string      `json:"action"`
	Status    OrderStatus `json:"status"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
