package domain

import "time"

type Refund struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID   string    `json:"order_id" gorm:"type:varchar(36);not null;index"`
	Amount    int64     `json:"amount" gorm:"not null"`
	Note      string    `json:"note" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Refund) TableName() string {
	return "order_refunds"
}

type Return struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID        string    `json:"order_id" gorm:"type:varchar(36);not null;index"`
	UserID         string    `json:"user_id" gorm:"type:varchar(36);not null"`
	CustomerPays   bool      `json:"customer_pays"`
	CustomerAmount int64     `json:"customer_amount"`
	ShopAmount     int64     `json:"shop_amount"`
	Note           string    `json:"note" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Return) TableName() string {
	return "order_returns"
}
