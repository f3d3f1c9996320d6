// internal/model/customer.go
package model

import "time"

// Customer is the CRM-facing record a lead becomes once a deal is won.
type Customer struct {
	ID        int64     `db:"id" json:"id"`
	Address   string    `db:"address" json:"address"`
	Name      string    `db:"name" json:"name"`
	Category  string    `db:"category" json:"category"`
	City      string    `db:"city" json:"city"`
	State     string    `db:"state" json:"state"`
	DealValue *float64  `db:"deal_value" json:"deal_value,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
