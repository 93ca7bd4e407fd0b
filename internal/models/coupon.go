package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

type Coupon struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	EventID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_coupons_event_code" json:"event_id"`
	HostID        uuid.UUID `gorm:"type:uuid;not null;index" json:"host_id"`
	Code          string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_coupons_event_code" json:"code"`
	DiscountType  string    `gorm:"type:varchar(20);not null" json:"discount_type"` // percentage, fixed
	DiscountValue float64   `gorm:"not null" json:"discount_value"`
	// MinOrderAmount of 0 means no minimum; MaxDiscountAmount of 0 means no cap.
	MinOrderAmount    float64   `json:"min_order_amount"`
	MaxDiscountAmount float64   `json:"max_discount_amount"`
	UsageLimit        int       `json:"usage_limit"` // 0 = unlimited
	UsedCount         int       `gorm:"not null;default:0" json:"used_count"`
	ValidFrom         time.Time `gorm:"not null" json:"valid_from"`
	ValidUntil        time.Time `gorm:"not null" json:"valid_until"`
	IsActive          bool      `gorm:"default:true" json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Relations
	Event Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
	Host  User  `gorm:"foreignKey:HostID" json:"host,omitempty"`
}

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsValid checks activity, validity window and usage limit at the given time.
func (c *Coupon) IsValid(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return false
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return false
	}
	return true
}

// RemainingUses returns the number of redemptions left, or -1 for unlimited.
func (c *Coupon) RemainingUses() int {
	if c.UsageLimit <= 0 {
		return -1
	}
	remaining := c.UsageLimit - c.UsedCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ComputeDiscount calculates the discount and final amount for an order.
// Percentage discounts are clamped to MaxDiscountAmount when set; fixed
// discounts apply once per order regardless of ticket quantity. The final
// amount never goes below zero. Pure calculation, no side effects.
func (c *Coupon) ComputeDiscount(orderAmount float64) (discountAmount, finalAmount float64) {
	order := decimal.NewFromFloat(orderAmount)
	var discount decimal.Decimal

	switch c.DiscountType {
	case DiscountTypePercentage:
		discount = order.
			Mul(decimal.NewFromFloat(c.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Round(2)
		if c.MaxDiscountAmount > 0 {
			cap := decimal.NewFromFloat(c.MaxDiscountAmount)
			if discount.GreaterThan(cap) {
				discount = cap
			}
		}
	case DiscountTypeFixed:
		discount = decimal.NewFromFloat(c.DiscountValue)
	default:
		discount = decimal.Zero
	}

	if discount.GreaterThan(order) {
		// Never discount more than the order itself
		final := decimal.Zero
		f, _ := discount.Float64()
		ff, _ := final.Float64()
		return f, ff
	}

	final := order.Sub(discount).Round(2)
	d, _ := discount.Float64()
	f, _ := final.Float64()
	return d, f
}
