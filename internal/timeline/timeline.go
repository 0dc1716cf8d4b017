// Package timeline turns an order's audit events into display entries.
package timeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"order-admin/internal/domain"
)

type Entry struct {
	EventID     string     `json:"event_id,omitempty"`
	Type        string     `json:"type,omitempty"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle,omitempty"`
	Icon        string     `json:"icon"`
	Color       string     `json:"color"`
	At          *time.Time `json:"at,omitempty"`
	Placeholder bool       `json:"placeholder,omitempty"`
}

type display struct {
	title    string
	icon     string
	color    string
	subtitle func(payload map[string]any) string
}

// displays is keyed by canonical event type; legacy aliases reach it
// through domain.CanonicalEventType.
var displays = map[string]display{
	domain.EventOrderCreated:         {title: "Order placed", icon: "cart", color: "blue"},
	domain.EventRiskEvaluated:        {title: "Risk evaluated", icon: "shield", color: "orange", subtitle: riskSubtitle},
	domain.EventVerificationRequired: {title: "Verification required", icon: "alert", color: "orange", subtitle: reasonSubtitle},
	domain.EventOrderApproved:        {title: "Order approved", icon: "check", color: "green"},
	domain.EventOrderRejected:        {title: "Order rejected", icon: "x", color: "red", subtitle: reasonSubtitle},
	domain.EventConfirmationSent:     {title: "Confirmation sent to customer", icon: "mail", color: "blue"},
	domain.EventCustomerConfirmed:    {title: "Customer confirmed the order", icon: "user-check", color: "green"},
	domain.EventCustomerCancelled:    {title: "Customer cancelled the order", icon: "user-x", color: "red", subtitle: reasonSubtitle},
	domain.EventQRPaymentLinkSent:    {title: "QR payment link sent", icon: "qr", color: "purple"},
	domain.EventPaymentReceived:      {title: "Payment received", icon: "wallet", color: "green", subtitle: methodSubtitle},
	domain.EventDelivering:           {title: "Delivery started", icon: "truck", color: "blue", subtitle: timeSubtitle("shipped_at", "Shipped at")},
	domain.EventOrderCompleted:       {title: "Order completed", icon: "flag", color: "green", subtitle: timeSubtitle("completed_at", "Completed at")},
	domain.EventRefundProcessed:      {title: "Refund processed", icon: "refund", color: "orange", subtitle: amountSubtitle},
	domain.EventReturnProcessed:      {title: "Return processed", icon: "return", color: "orange", subtitle: amountSubtitle},
}

var riskColors = map[domain.RiskLevel]string{
	domain.RiskLow:    "green",
	domain.RiskMedium: "orange",
	domain.RiskHigh:   "red",
}

// Placeholder is rendered in place of an empty timeline.
func Placeholder() Entry {
	return Entry{Title: "No events recorded", Icon: "info", Color: "gray", Placeholder: true}
}

// Render deduplicates events by type and second, orders them oldest first
// and maps each to an Entry. The input slice is not modified.
func Render(events []domain.OrderEvent) []Entry {
	kept := dedupe(events)
	if len(kept) == 0 {
		return []Entry{Placeholder()}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].CreatedAt.Before(kept[j].CreatedAt)
	})

	out := make([]Entry, 0, len(kept))
	for i := range kept {
		out = append(out, entryFor(&kept[i]))
	}
	return out
}

func dedupe(events []domain.OrderEvent) []domain.OrderEvent {
	seen := make(map[string]struct{}, len(events))
	out := make([]domain.OrderEvent, 0, len(events))
	for _, ev := range events {
		key := domain.CanonicalEventType(ev.EventType) + "|" + strconv.FormatInt(ev.CreatedAt.Unix(), 10)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ev)
	}
	return out
}

func entryFor(ev *domain.OrderEvent) Entry {
	at := ev.CreatedAt
	canonical := domain.CanonicalEventType(ev.EventType)
	e := Entry{EventID: ev.ID, Type: canonical, At: &at}

	d, ok := displays[canonical]
	if !ok {
		e.Title = strings.TrimSpace(ev.EventType)
		e.Icon = "dot"
		e.Color = "gray"
		e.Subtitle = reasonSubtitle(ev.Payload)
		return e
	}

	e.Title, e.Icon, e.Color = d.title, d.icon, d.color
	if d.subtitle != nil {
		e.Subtitle = d.subtitle(ev.Payload)
	}
	if canonical == domain.EventRiskEvaluated {
		ra := domain.AssessRisk(nil, []domain.OrderEvent{*ev})
		if c, ok := riskColors[ra.Level]; ok {
			e.Color = c
		}
	}
	return e
}

func reasonSubtitle(p map[string]any) string {
	if r, ok := p["reason"]; ok && r != nil {
		if s := strings.TrimSpace(fmt.Sprint(r)); s != "" {
			return "Reason: " + s
		}
	}
	return ""
}

func methodSubtitle(p map[string]any) string {
	if m, ok := p["method"].(string); ok && m != "" {
		return "Method: " + strings.ToUpper(m)
	}
	return ""
}

func amountSubtitle(p map[string]any) string {
	parts := []string{}
	if a, ok := p["amount"]; ok && a != nil {
		parts = append(parts, "Amount: "+fmt.Sprint(a))
	}
	if n, ok := p["note"].(string); ok && strings.TrimSpace(n) != "" {
		parts = append(parts, n)
	}
	return strings.Join(parts, " · ")
}

func riskSubtitle(p map[string]any) string {
	ev := domain.OrderEvent{EventType: domain.EventRiskEvaluated, Payload: p}
	return domain.AssessRisk(nil, []domain.OrderEvent{ev}).Label()
}

func timeSubtitle(field, prefix string) func(map[string]any) string {
	return func(p map[string]any) string {
		v, ok := p[field]
		if !ok || v == nil {
			return ""
		}
		s := fmt.Sprint(v)
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			s = t.Format("2006-01-02 15:04")
		}
		return prefix + " " + s
	}
}
