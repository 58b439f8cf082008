package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Discount types.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Discount-related domain errors.
var (
	ErrDiscountNotFound    = &Error{Code: ENOTFOUND, Message: "Discount code not found"}
	ErrDiscountAlreadyUsed = &Error{Code: ECONFLICT, Message: "Discount code has already been used by this user"}
)

// DiscountCode is one document in the discount_codes collection. Usage state
// (UsageCount, UsedByUsers) is mutated exclusively through ApplyUsage.
type DiscountCode struct {
	ID                    primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Code                  string               `bson:"code" json:"code"`
	Description           string               `bson:"description,omitempty" json:"description,omitempty"`
	DiscountType          string               `bson:"discountType" json:"discountType"`
	DiscountValue         float64              `bson:"discountValue" json:"discountValue"`
	MinimumPurchaseAmount *float64             `bson:"minimumPurchaseAmount,omitempty" json:"minimumPurchaseAmount,omitempty"`
	StartDate             time.Time            `bson:"startDate" json:"startDate"`
	EndDate               time.Time            `bson:"endDate" json:"endDate"`
	MaxUsage              *int                 `bson:"maxUsage,omitempty" json:"maxUsage,omitempty"`
	UsageCount            int                  `bson:"usageCount" json:"usageCount"`
	UsedByUsers           []primitive.ObjectID `bson:"usedByUsers,omitempty" json:"usedByUsers,omitempty"`
	IsActive              bool                 `bson:"isActive" json:"isActive"`
	IsDeleted             bool                 `bson:"isDeleted" json:"isDeleted"`
	CreatedAt             time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// UsedBy reports whether the user already has a usage record for this code.
func (d *DiscountCode) UsedBy(userID primitive.ObjectID) bool {
	for _, u := range d.UsedByUsers {
		if u == userID {
			return true
		}
	}
	return false
}

// DiscountLedger exposes the two discount decisions the order engine makes.
// ApplyUsage is the only side-effecting call: the "not yet used" check and
// the usage append are a single atomic conditional update, so two concurrent
// orders by the same user cannot both record a usage.
type DiscountLedger interface {
	// FindActiveCode returns the active, non-deleted code whose validity
	// window contains now, or ErrDiscountNotFound.
	FindActiveCode(ctx context.Context, code string, now time.Time) (*DiscountCode, error)

	// ApplyUsage increments the code's usage count and records the user,
	// at most once per (code, user). Returns ErrDiscountAlreadyUsed if a
	// usage record already exists.
	ApplyUsage(ctx context.Context, code string, userID primitive.ObjectID) error
}
