package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Catalog-related domain errors.
var (
	ErrProductNotFound = &Error{Code: ENOTFOUND, Message: "Product not found"}
	ErrVariantNotFound = &Error{Code: ENOTFOUND, Message: "Product variant not found"}
)

// Variant is a purchasable configuration of a product. Variants are value
// objects owned exclusively by their product; they have no independent
// lifecycle and are only mutated through catalog operations.
type Variant struct {
	VariantID primitive.ObjectID `bson:"variantId" json:"variantId"`
	Color     string             `bson:"color,omitempty" json:"color,omitempty"`
	HexCode   string             `bson:"hexCode,omitempty" json:"hexCode,omitempty"`
	Size      string             `bson:"size,omitempty" json:"size,omitempty"`
	RAM       string             `bson:"ram,omitempty" json:"ram,omitempty"`
	Storage   string             `bson:"storage,omitempty" json:"storage,omitempty"`
	Condition string             `bson:"condition,omitempty" json:"condition,omitempty"`
	Stock     int                `bson:"stock" json:"stock"`
}

// PriceChange is one append-only entry in a product's price history.
// Entries are never mutated after creation.
type PriceChange struct {
	PreviousPrice float64   `bson:"previousPrice" json:"previousPrice"`
	NewPrice      float64   `bson:"newPrice" json:"newPrice"`
	ChangedAt     time.Time `bson:"changedAt" json:"changedAt"`
}

// Pricing holds the current price and the log of prior prices.
type Pricing struct {
	Original float64       `bson:"original" json:"original"`
	Current  float64       `bson:"current" json:"current"`
	History  []PriceChange `bson:"history,omitempty" json:"history,omitempty"`
}

// Product is one document in the products collection.
type Product struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name       string             `bson:"name" json:"name"`
	BrandID    primitive.ObjectID `bson:"brandId,omitempty" json:"brandId,omitempty"`
	CategoryID primitive.ObjectID `bson:"categoryId,omitempty" json:"categoryId,omitempty"`
	Pricing    Pricing            `bson:"pricing" json:"pricing"`
	Variants   []Variant          `bson:"variants" json:"variants"`
	TotalSold  int                `bson:"totalSold" json:"totalSold"`
	IsDeleted  bool               `bson:"isDeleted" json:"isDeleted"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Variant returns the variant with the given ID, or nil.
func (p *Product) Variant(variantID primitive.ObjectID) *Variant {
	for i := range p.Variants {
		if p.Variants[i].VariantID == variantID {
			return &p.Variants[i]
		}
	}
	return nil
}

// CatalogStore exposes the catalog operations the order engine needs.
// Stock counters are only ever mutated through AdjustVariantStock, which must
// be an atomic conditional update: a decrement that would take stock below
// zero affects nothing and reports ErrInsufficientStock.
type CatalogStore interface {
	// FindProductByVariant returns the non-deleted product owning the variant.
	FindProductByVariant(ctx context.Context, variantID primitive.ObjectID) (*Product, error)

	// AdjustVariantStock changes a variant's stock by delta (negative to
	// reserve, positive to release). Returns ErrProductNotFound or
	// ErrVariantNotFound when the target is absent, ErrInsufficientStock
	// when a decrement would go negative.
	AdjustVariantStock(ctx context.Context, productID, variantID primitive.ObjectID, delta int) error

	// IncrementTotalSold moves the product's sold counter by delta.
	IncrementTotalSold(ctx context.Context, productID primitive.ObjectID, delta int) error

	// RecordPriceChange sets pricing.current and appends the prior price to
	// the history log.
	RecordPriceChange(ctx context.Context, productID primitive.ObjectID, newPrice float64) error
}

// StockDiscrepancy records a stock adjustment the engine could not apply
// because the product or variant was missing. Order creation proceeds;
// the discrepancy is persisted for operational reconciliation instead of
// being silently dropped.
type StockDiscrepancy struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID   string             `bson:"orderId" json:"orderId"`
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	VariantID primitive.ObjectID `bson:"variantId" json:"variantId"`
	Delta     int                `bson:"delta" json:"delta"`
	Reason    string             `bson:"reason" json:"reason"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// ReconciliationQueue collects stock discrepancies for later operator review.
type ReconciliationQueue interface {
	Record(ctx context.Context, d StockDiscrepancy) error
}
