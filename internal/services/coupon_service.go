package services

import (
	"errors"
	"time"

	"github.com/eventsphere/backend/internal/models"
	"github.com/eventsphere/backend/pkg/validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrCouponInactive     = errors.New("coupon is not active")
	ErrCouponNotStarted   = errors.New("coupon is not yet valid")
	ErrCouponExpired      = errors.New("coupon has expired")
	ErrCouponLimitReached = errors.New("coupon usage limit reached")
	ErrMinimumOrderNotMet = errors.New("minimum order amount not met")
	ErrCouponInUse        = errors.New("coupon has been redeemed and cannot be deleted")
	ErrCouponCodeTaken    = errors.New("coupon code already exists for this event")
)

type CouponService struct {
	db *gorm.DB
}

func NewCouponService(db *gorm.DB) *CouponService {
	return &CouponService{db: db}
}

func validateCouponFields(coupon *models.Coupon) error {
	if !validation.ValidateCouponCode(coupon.Code) {
		return errors.New("coupon code must be 3-20 uppercase letters or digits")
	}
	if coupon.DiscountType != models.DiscountTypePercentage && coupon.DiscountType != models.DiscountTypeFixed {
		return errors.New("discount type must be 'percentage' or 'fixed'")
	}
	if coupon.DiscountValue <= 0 {
		return errors.New("discount value must be greater than 0")
	}
	if coupon.DiscountType == models.DiscountTypePercentage && coupon.DiscountValue > 100 {
		return errors.New("percentage discount cannot exceed 100")
	}
	if coupon.MinOrderAmount < 0 || coupon.MaxDiscountAmount < 0 {
		return errors.New("order limits cannot be negative")
	}
	if coupon.UsageLimit < 0 {
		return errors.New("usage limit cannot be negative")
	}
	if !coupon.ValidFrom.Before(coupon.ValidUntil) {
		return errors.New("valid_from must be before valid_until")
	}
	return nil
}

// CreateCoupon creates a coupon scoped to one event owned by the host
func (s *CouponService) CreateCoupon(coupon *models.Coupon) error {
	coupon.Code = validation.NormalizeCouponCode(coupon.Code)
	if err := validateCouponFields(coupon); err != nil {
		return err
	}

	var event models.Event
	if err := s.db.First(&event, "id = ?", coupon.EventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEventNotFound
		}
		return err
	}
	if event.HostID != coupon.HostID {
		return ErrNotEventHost
	}

	var existing int64
	if err := s.db.Model(&models.Coupon{}).
		Where("event_id = ? AND code = ?", coupon.EventID, coupon.Code).
		Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return ErrCouponCodeTaken
	}

	coupon.UsedCount = 0
	return s.db.Create(coupon).Error
}

// GetCouponByID retrieves a coupon by ID
func (s *CouponService) GetCouponByID(couponID uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := s.db.First(&coupon, "id = ?", couponID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}
	return &coupon, nil
}

// GetCouponByCode retrieves a coupon by event and normalized code
func (s *CouponService) GetCouponByCode(eventID uuid.UUID, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	code = validation.NormalizeCouponCode(code)
	if err := s.db.Where("event_id = ? AND code = ?", eventID, code).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}
	return &coupon, nil
}

// UpdateCoupon updates a host's coupon. The code and event binding are fixed
// at creation; value, limits, window and activity may change.
func (s *CouponService) UpdateCoupon(couponID, hostID uuid.UUID, updates map[string]interface{}) error {
	coupon, err := s.GetCouponByID(couponID)
	if err != nil {
		return err
	}
	if coupon.HostID != hostID {
		return ErrNotEventHost
	}

	if v, ok := updates["discount_value"].(float64); ok {
		coupon.DiscountValue = v
	}
	if v, ok := updates["min_order_amount"].(float64); ok {
		coupon.MinOrderAmount = v
	}
	if v, ok := updates["max_discount_amount"].(float64); ok {
		coupon.MaxDiscountAmount = v
	}
	if v, ok := updates["usage_limit"].(int); ok {
		coupon.UsageLimit = v
	}
	if v, ok := updates["valid_from"].(time.Time); ok && !v.IsZero() {
		coupon.ValidFrom = v
	}
	if v, ok := updates["valid_until"].(time.Time); ok && !v.IsZero() {
		coupon.ValidUntil = v
	}
	if v, ok := updates["is_active"].(bool); ok {
		coupon.IsActive = v
	}

	if err := validateCouponFields(coupon); err != nil {
		return err
	}

	return s.db.Model(&models.Coupon{}).Where("id = ?", couponID).Updates(map[string]interface{}{
		"discount_value":      coupon.DiscountValue,
		"min_order_amount":    coupon.MinOrderAmount,
		"max_discount_amount": coupon.MaxDiscountAmount,
		"usage_limit":         coupon.UsageLimit,
		"valid_from":          coupon.ValidFrom,
		"valid_until":         coupon.ValidUntil,
		"is_active":           coupon.IsActive,
	}).Error
}

// DeactivateCoupon turns a coupon off without deleting it
func (s *CouponService) DeactivateCoupon(couponID, hostID uuid.UUID) error {
	coupon, err := s.GetCouponByID(couponID)
	if err != nil {
		return err
	}
	if coupon.HostID != hostID {
		return ErrNotEventHost
	}

	return s.db.Model(&models.Coupon{}).Where("id = ?", couponID).Update("is_active", false).Error
}

// DeleteCoupon removes a coupon, only while it has never been redeemed.
// Redeemed coupons must be deactivated instead so booking records keep a
// resolvable reference.
func (s *CouponService) DeleteCoupon(couponID, hostID uuid.UUID) error {
	coupon, err := s.GetCouponByID(couponID)
	if err != nil {
		return err
	}
	if coupon.HostID != hostID {
		return ErrNotEventHost
	}
	if coupon.UsedCount > 0 {
		return ErrCouponInUse
	}

	// Guard against a redemption racing the check
	result := s.db.Where("id = ? AND used_count = 0", couponID).Delete(&models.Coupon{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCouponInUse
	}
	return nil
}

// ListEventCoupons lists the coupons of an event for its host
func (s *CouponService) ListEventCoupons(eventID, hostID uuid.UUID) ([]*models.Coupon, error) {
	var event models.Event
	if err := s.db.First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if event.HostID != hostID {
		return nil, ErrNotEventHost
	}

	var coupons []*models.Coupon
	err := s.db.Where("event_id = ?", eventID).Order("created_at DESC").Find(&coupons).Error
	return coupons, err
}

// ValidateAndPrice checks a coupon's eligibility for an order and computes
// the discounted price. Pure read: usage accounting happens only at payment
// confirmation, so previewing a coupon never consumes a redemption.
func (s *CouponService) ValidateAndPrice(eventID uuid.UUID, code string, orderAmount float64) (*models.Coupon, float64, float64, error) {
	coupon, err := s.GetCouponByCode(eventID, code)
	if err != nil {
		return nil, 0, 0, err
	}

	now := time.Now()
	if !coupon.IsActive {
		return nil, 0, 0, ErrCouponInactive
	}
	if now.Before(coupon.ValidFrom) {
		return nil, 0, 0, ErrCouponNotStarted
	}
	if now.After(coupon.ValidUntil) {
		return nil, 0, 0, ErrCouponExpired
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return nil, 0, 0, ErrCouponLimitReached
	}
	if coupon.MinOrderAmount > 0 && orderAmount < coupon.MinOrderAmount {
		return nil, 0, 0, ErrMinimumOrderNotMet
	}

	discount, final := coupon.ComputeDiscount(orderAmount)
	return coupon, discount, final, nil
}

// RedeemCoupon increments the coupon's usage counter, exactly once per
// successful payment. The conditional update keeps concurrent redemptions of
// a limited coupon from exceeding the usage limit. Returns
// ErrCouponLimitReached when the limit was hit by a concurrent redemption.
func (s *CouponService) RedeemCoupon(couponID uuid.UUID) error {
	result := s.db.Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit = 0 OR used_count < usage_limit)", couponID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var exists int64
		if err := s.db.Model(&models.Coupon{}).Where("id = ?", couponID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return ErrCouponNotFound
		}
		return ErrCouponLimitReached
	}
	return nil
}
