// Package actions decides which order actions are legal and guards their
// execution so only one runs per order at a time.
package actions

import "order-admin/internal/domain"

type Action string

const (
	StartDelivery           Action = "start_delivery"
	MarkCompleted           Action = "mark_completed"
	SendQRLink              Action = "send_qr_link"
	SimulateQRPaid          Action = "simulate_qr_paid"
	Reject                  Action = "reject"
	Approve                 Action = "approve"
	CustomerCancel          Action = "customer_cancel"
	CustomerConfirm         Action = "customer_confirm"
	SimulatePaymentReceived Action = "simulate_payment_received"
)

var labels = map[Action]string{
	StartDelivery:           "Start Delivery",
	MarkCompleted:           "Mark Completed",
	SendQRLink:              "Send QR Link",
	SimulateQRPaid:          "Simulate QR Paid",
	Reject:                  "Reject",
	Approve:                 "Approve",
	CustomerCancel:          "Customer Cancel",
	CustomerConfirm:         "Customer Confirm",
	SimulatePaymentReceived: "Simulate Payment Received",
}

func (a Action) Label() string {
	return labels[a]
}

// Valid reports whether a names a known action.
func (a Action) Valid() bool {
	_, ok := labels[a]
	return ok
}

// Flags are computed once per resolution.
type Flags struct {
	IsCOD        bool `json:"is_cod"`
	IsPrepaid    bool `json:"is_prepaid"`
	HasPaid      bool `json:"has_paid"`
	HasQRSent    bool `json:"has_qr_sent"`
	IsLowRiskCOD bool `json:"is_low_risk_cod"`
}

func DeriveFlags(order *domain.Order, events []domain.OrderEvent) Flags {
	return Flags{
		IsCOD:        order.IsCOD(),
		IsPrepaid:    order.IsPrepaid(),
		HasPaid:      order.HasPaid(),
		HasQRSent:    order.QRSentAt != nil || domain.HasEvent(events, domain.EventQRPaymentLinkSent),
		IsLowRiskCOD: order.IsLowRiskCOD(),
	}
}

// Resolve returns the legal actions for order in display order. The rules
// are evaluated top to bottom and the first match wins.
func Resolve(order *domain.Order, f Flags) []Action {
	status := order.Status
	shipping := status == domain.StatusDelivering || status == domain.StatusCompleted

	switch {
	case (f.IsPrepaid || status == domain.StatusOrderPaid) && !shipping:
		return []Action{StartDelivery}

	case (f.IsPrepaid || status == domain.StatusOrderPaid) && status == domain.StatusDelivering:
		return []Action{MarkCompleted}

	case f.IsCOD && status == domain.StatusOrderApproved:
		out := qrControl(f)
		if f.IsLowRiskCOD {
			out = append(out, StartDelivery)
		}
		return out

	case status == domain.StatusPendingReview || status == domain.StatusVerificationRequired:
		return []Action{Reject, Approve}

	case status == domain.StatusOrderConfirmationSent && f.IsLowRiskCOD:
		var out []Action
		if !f.HasPaid {
			out = append(out, SimulateQRPaid)
		}
		return append(out, StartDelivery)

	case status == domain.StatusOrderConfirmationSent:
		return []Action{CustomerCancel, CustomerConfirm}

	case status == domain.StatusCustomerConfirmed:
		var out []Action
		if !f.HasPaid && (!f.IsLowRiskCOD || f.HasQRSent) {
			out = append(out, SimulateQRPaid)
		}
		return append(out, StartDelivery)

	case shipping:
		var out []Action
		if f.IsCOD && !f.HasPaid {
			out = append(out, SimulatePaymentReceived)
		}
		if status == domain.StatusDelivering {
			out = append(out, MarkCompleted)
		}
		return out
	}
	return nil
}

func qrControl(f Flags) []Action {
	switch {
	case f.HasPaid:
		return nil
	case f.HasQRSent:
		return []Action{SimulateQRPaid}
	default:
		return []Action{SendQRLink}
	}
}

// Allowed reports whether a is among the resolved actions.
func Allowed(actions []Action, a Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}
