package domain

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusPendingReview         OrderStatus = "PENDING_REVIEW"
	StatusVerificationRequired  OrderStatus = "VERIFICATION_REQUIRED"
	StatusOrderApproved         OrderStatus = "ORDER_APPROVED"
	StatusOrderConfirmationSent OrderStatus = "ORDER_CONFIRMATION_SENT"
	StatusCustomerConfirmed     OrderStatus = "CUSTOMER_CONFIRMED"
	StatusOrderPaid             OrderStatus = "ORDER_PAID"
	StatusDelivering            OrderStatus = "DELIVERING"
	StatusCompleted             OrderStatus = "COMPLETED"
	StatusOrderRejected         OrderStatus = "ORDER_REJECTED"
	StatusCustomerCancelled     OrderStatus = "CUSTOMER_CANCELLED"
)

// PaymentCOD is cash on delivery. Any other non-empty method is a prepaid variant.
const PaymentCOD = "COD"

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// LowRiskMaxScore is the highest score still treated as low risk.
const LowRiskMaxScore = 30

const mediumRiskMaxScore = 70

type Order struct {
	ID            string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        string      `json:"user_id" gorm:"type:varchar(36);not null;index:idx_orders_user_created"`
	OrderCode     string      `json:"order_code" gorm:"type:varchar(64);index"`
	CustomerName  string      `json:"customer_name" gorm:"type:varchar(255)"`
	CustomerPhone string      `json:"customer_phone" gorm:"type:varchar(32);index"`
	PaymentMethod string      `json:"payment_method" gorm:"type:varchar(32)"`
	Status        OrderStatus `json:"status" gorm:"type:varchar(32);not null;index"`
	TotalAmount   int64       `json:"total_amount"`
	RiskScore     *int        `json:"risk_score"`
	RiskLevel     RiskLevel   `json:"risk_level" gorm:"type:varchar(16)"`

	AddressDetail string `json:"address_detail" gorm:"type:varchar(255)"`
	Ward          string `json:"ward" gorm:"type:varchar(128)"`
	District      string `json:"district" gorm:"type:varchar(128)"`
	Province      string `json:"province" gorm:"type:varchar(128)"`

	ApprovedAt          *time.Time `json:"approved_at"`
	ConfirmationSentAt  *time.Time `json:"confirmation_sent_at"`
	CustomerConfirmedAt *time.Time `json:"customer_confirmed_at"`
	QRSentAt            *time.Time `json:"qr_sent_at"`
	PaidAt              *time.Time `json:"paid_at"`
	ShippedAt           *time.Time `json:"shipped_at"`
	CompletedAt         *time.Time `json:"completed_at"`
	CancelledAt         *time.Time `json:"cancelled_at"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_orders_user_created"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) IsCOD() bool {
	m := strings.TrimSpace(o.PaymentMethod)
	return m == "" || strings.EqualFold(m, PaymentCOD)
}

func (o *Order) IsPrepaid() bool {
	return !o.IsCOD()
}

// HasPaid reports whether either payment signal is set.
func (o *Order) HasPaid() bool {
	return o.PaidAt != nil || o.Status == StatusOrderPaid
}

func (o *Order) IsLowRiskCOD() bool {
	return o.IsCOD() && o.RiskScore != nil && *o.RiskScore <= LowRiskMaxScore
}

// PaymentDivergence describes a disagreement between the paid timestamp and
// the ORDER_PAID status. It returns "" when both signals agree or when the
// order has legitimately moved past ORDER_PAID.
func (o *Order) PaymentDivergence() string {
	switch {
	case o.Status == StatusOrderPaid && o.PaidAt == nil:
		return "status ORDER_PAID without paid_at"
	case o.PaidAt != nil && o.Status.beforePayment():
		return "paid_at set while status is " + string(o.Status)
	}
	return ""
}

func (s OrderStatus) beforePayment() bool {
	switch s {
	case StatusPendingReview, StatusVerificationRequired, StatusOrderApproved,
		StatusOrderConfirmationSent, StatusCustomerConfirmed:
		return true
	}
	return false
}

// LevelForScore maps a 0-100 score to its tier.
func LevelForScore(score int) RiskLevel {
	switch {
	case score <= LowRiskMaxScore:
		return RiskLow
	case score <= mediumRiskMaxScore:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ScoreRange returns the inclusive bounds for a tier name used in list
// filters. ok is false for unknown names.
func ScoreRange(tier string) (lo, hi int, ok bool) {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "low":
		return 0, LowRiskMaxScore, true
	case "medium":
		return LowRiskMaxScore + 1, mediumRiskMaxScore, true
	case "high":
		return mediumRiskMaxScore + 1, 100, true
	}
	return 0, 0, false
}

// OrderFilters narrows an order listing. Empty fields are ignored.
type OrderFilters struct {
	SearchQuery   string
	Status        string
	RiskScore     string
	PaymentMethod string
}

type OrderPage struct {
	Orders     []Order `json:"orders"`
	TotalCount int64   `json:"total_count"`
}

// PhoneOrderStatus is one historical order status for a customer phone.
type PhoneOrderStatus struct {
	Phone  string      `json:"phone"`
	Status OrderStatus `json:"status"`
}
