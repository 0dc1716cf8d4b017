package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestAssessRisk_LatestEventWins(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	order := &Order{RiskScore: intPtr(10), RiskLevel: RiskLow}
	events := []OrderEvent{
		{EventType: "RISK_EVALUATED", CreatedAt: t0.Add(time.Hour), Payload: map[string]any{
			"score": float64(64),
			"level": "medium",
			"reasons": []any{
				"new customer",
				map[string]any{"description": "address mismatch", "score": float64(25)},
			},
		}},
		{EventType: EventRiskEvaluated, CreatedAt: t0, Payload: map[string]any{"score": float64(5)}},
		{EventType: EventOrderCreated, CreatedAt: t0.Add(2 * time.Hour)},
	}

	ra := AssessRisk(order, events)
	require.NotNil(t, ra.Score)
	assert.Equal(t, 64, *ra.Score)
	assert.Equal(t, RiskMedium, ra.Level)
	assert.Equal(t, "event", ra.Source)
	require.Len(t, ra.Reasons, 2)
	assert.Equal(t, "new customer", ra.Reasons[0].Description)
	assert.Nil(t, ra.Reasons[0].Score)
	assert.Equal(t, "address mismatch", ra.Reasons[1].Description)
	assert.Equal(t, 25, *ra.Reasons[1].Score)
	assert.Equal(t, "MEDIUM (64)", ra.Label())
}

func TestAssessRisk_FallsBackToOrder(t *testing.T) {
	ra := AssessRisk(&Order{RiskScore: intPtr(75)}, []OrderEvent{{EventType: EventOrderCreated}})
	assert.Equal(t, "order", ra.Source)
	assert.Equal(t, RiskHigh, ra.Level)
	assert.Equal(t, 75, *ra.Score)
	assert.Empty(t, ra.Reasons)

	ra = AssessRisk(&Order{}, nil)
	assert.Nil(t, ra.Score)
	assert.Equal(t, "", ra.Label())
}

func TestLevelForScore(t *testing.T) {
	assert.Equal(t, RiskLow, LevelForScore(0))
	assert.Equal(t, RiskLow, LevelForScore(30))
	assert.Equal(t, RiskMedium, LevelForScore(31))
	assert.Equal(t, RiskMedium, LevelForScore(70))
	assert.Equal(t, RiskHigh, LevelForScore(71))
}

func TestOrderPaymentSignals(t *testing.T) {
	now := time.Now()

	o := Order{PaymentMethod: " cod ", Status: StatusCustomerConfirmed}
	assert.True(t, o.IsCOD())
	assert.False(t, o.HasPaid())
	assert.Equal(t, "", o.PaymentDivergence())

	o.PaidAt = &now
	assert.True(t, o.HasPaid())
	assert.Contains(t, o.PaymentDivergence(), "CUSTOMER_CONFIRMED")

	o = Order{Status: StatusOrderPaid}
	assert.True(t, o.HasPaid())
	assert.Equal(t, "status ORDER_PAID without paid_at", o.PaymentDivergence())

	o = Order{Status: StatusDelivering, PaidAt: &now}
	assert.Equal(t, "", o.PaymentDivergence())
}

func TestCanonicalEventType(t *testing.T) {
	assert.Equal(t, EventQRPaymentLinkSent, CanonicalEventType("QR_PAYMENT_LINK_SENT"))
	assert.Equal(t, EventQRPaymentLinkSent, CanonicalEventType(" qr_payment_link_sent "))
	assert.Equal(t, EventDelivering, CanonicalEventType("ORDER_SHIPPED"))
	assert.Equal(t, "CARRIER_PICKUP", CanonicalEventType("CARRIER_PICKUP"))
	assert.True(t, HasEvent([]OrderEvent{{EventType: "QR_SENT"}}, EventQRPaymentLinkSent))
}

func TestScoreRange(t *testing.T) {
	lo, hi, ok := ScoreRange("Medium")
	assert.True(t, ok)
	assert.Equal(t, 31, lo)
	assert.Equal(t, 70, hi)

	_, _, ok = ScoreRange("extreme")
	assert.False(t, ok)
}
