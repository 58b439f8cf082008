package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pttech/commerce/internal/domain"
)

// CatalogStore implements domain.CatalogStore on MongoDB.
type CatalogStore struct {
	coll *mongo.Collection
}

var _ domain.CatalogStore = (*CatalogStore)(nil)

// NewCatalogStore creates a MongoDB-backed catalog store.
func NewCatalogStore(db *mongo.Database) *CatalogStore {
	return &CatalogStore{coll: db.Collection(collProducts)}
}

func (s *CatalogStore) FindProductByVariant(ctx context.Context, variantID primitive.ObjectID) (*domain.Product, error) {
	var product domain.Product
	err := s.coll.FindOne(ctx, bson.M{
		"variants.variantId": variantID,
		"isDeleted":          false,
	}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrVariantNotFound
		}
		return nil, domain.Internal(err, "catalog.find_by_variant", "failed to find product")
	}
	return &product, nil
}

// AdjustVariantStock moves a variant's stock counter by delta in one
// conditional update. For decrements the filter requires the variant to
// still hold enough stock, so the document is only modified when the
// decrement cannot go negative. Distinguishing "not enough stock" from
// "no such variant" takes a second read, taken only on the failure path.
func (s *CatalogStore) AdjustVariantStock(ctx context.Context, productID, variantID primitive.ObjectID, delta int) error {
	const op = "catalog.adjust_stock"

	variantMatch := bson.M{"v.variantId": variantID}
	if delta < 0 {
		variantMatch = bson.M{"v.variantId": variantID, "v.stock": bson.M{"$gte": -delta}}
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": productID, "isDeleted": false},
		bson.M{
			"$inc": bson.M{"variants.$[v].stock": delta},
			"$set": bson.M{"updatedAt": time.Now()},
		},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{variantMatch},
		}),
	)
	if err != nil {
		return domain.Internal(err, op, "failed to adjust variant stock")
	}
	if res.MatchedCount == 0 {
		return domain.ErrProductNotFound
	}
	if res.ModifiedCount == 0 {
		// The product matched but no variant passed the array filter:
		// either the variant is absent or its stock is too low.
		exists, err := s.variantExists(ctx, productID, variantID)
		if err != nil {
			return domain.Internal(err, op, "failed to adjust variant stock")
		}
		if !exists {
			return domain.ErrVariantNotFound
		}
		return domain.ErrInsufficientStock
	}
	return nil
}

func (s *CatalogStore) variantExists(ctx context.Context, productID, variantID primitive.ObjectID) (bool, error) {
	err := s.coll.FindOne(ctx,
		bson.M{"_id": productID, "variants.variantId": variantID},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *CatalogStore) IncrementTotalSold(ctx context.Context, productID primitive.ObjectID, delta int) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": productID},
		bson.M{"$inc": bson.M{"totalSold": delta}},
	)
	if err != nil {
		return domain.Internal(err, "catalog.increment_sold", "failed to increment totalSold")
	}
	if res.MatchedCount == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// RecordPriceChange swaps pricing.current to newPrice and appends the prior
// price to the history log in the same update.
func (s *CatalogStore) RecordPriceChange(ctx context.Context, productID primitive.ObjectID, newPrice float64) error {
	const op = "catalog.record_price_change"

	var product domain.Product
	err := s.coll.FindOne(ctx, bson.M{"_id": productID, "isDeleted": false}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ErrProductNotFound
		}
		return domain.Internal(err, op, "failed to find product")
	}

	// Guard on the price we read so a concurrent change loses cleanly
	// instead of logging a stale previous price.
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": productID, "pricing.current": product.Pricing.Current},
		bson.M{
			"$set": bson.M{"pricing.current": newPrice, "updatedAt": time.Now()},
			"$push": bson.M{"pricing.history": domain.PriceChange{
				PreviousPrice: product.Pricing.Current,
				NewPrice:      newPrice,
				ChangedAt:     time.Now(),
			}},
		},
	)
	if err != nil {
		return domain.Internal(err, op, "failed to record price change")
	}
	if res.MatchedCount == 0 {
		return domain.Conflict(op, "price changed concurrently")
	}
	return nil
}
