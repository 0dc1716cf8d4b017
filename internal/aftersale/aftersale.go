// Package aftersale validates refund and return submissions before they
// reach the backend.
package aftersale

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// DefaultCustomerAmount is restored when the payer switches back to the customer.
const DefaultCustomerAmount int64 = 25000

var (
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	ErrInvalidPayer  = errors.New("payer must be customer or shop")
)

// ParseAmount strips every non-digit character and requires a positive result.
// "150.000 đ" parses as 150000.
func ParseAmount(raw string) (int64, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return 0, ErrInvalidAmount
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidAmount
	}
	return n, nil
}

type Refund struct {
	Amount int64
	Note   string
}

func NewRefund(amount, note string) (Refund, error) {
	n, err := ParseAmount(amount)
	if err != nil {
		return Refund{}, err
	}
	return Refund{Amount: n, Note: strings.TrimSpace(note)}, nil
}

type Payer string

const (
	PayerCustomer Payer = "customer"
	PayerShop     Payer = "shop"
)

// ReturnForm holds the return dialog state. The customer amount is zero
// whenever the shop pays.
type ReturnForm struct {
	payer          Payer
	customerAmount int64
	ShopAmount     int64
	Note           string
}

func NewReturnForm() *ReturnForm {
	return &ReturnForm{payer: PayerCustomer, customerAmount: DefaultCustomerAmount}
}

func (f *ReturnForm) Payer() Payer { return f.payer }

func (f *ReturnForm) CustomerAmount() int64 { return f.customerAmount }

// SetPayer switches who pays the return shipping.
func (f *ReturnForm) SetPayer(p Payer) error {
	switch p {
	case PayerShop:
		f.customerAmount = 0
	case PayerCustomer:
		if f.payer != PayerCustomer {
			f.customerAmount = DefaultCustomerAmount
		}
	default:
		return ErrInvalidPayer
	}
	f.payer = p
	return nil
}

// SetCustomerAmount is ignored while the shop pays.
func (f *ReturnForm) SetCustomerAmount(n int64) {
	if f.payer == PayerShop {
		return
	}
	f.customerAmount = n
}

type Return struct {
	CustomerPays   bool
	CustomerAmount int64
	ShopAmount     int64
	Note           string
}

// Submission returns the values sent to the backend.
func (f *ReturnForm) Submission() Return {
	r := Return{
		CustomerPays:   f.payer == PayerCustomer,
		CustomerAmount: f.customerAmount,
		ShopAmount:     f.ShopAmount,
		Note:           strings.TrimSpace(f.Note),
	}
	if !r.CustomerPays {
		r.CustomerAmount = 0
	}
	return r
}
