package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pttech/commerce/internal/domain"
)

// DiscountStore implements domain.DiscountLedger on MongoDB.
type DiscountStore struct {
	coll *mongo.Collection
}

var _ domain.DiscountLedger = (*DiscountStore)(nil)

// NewDiscountStore creates a MongoDB-backed discount ledger.
func NewDiscountStore(db *mongo.Database) *DiscountStore {
	return &DiscountStore{coll: db.Collection(collDiscountCodes)}
}

func (s *DiscountStore) FindActiveCode(ctx context.Context, code string, now time.Time) (*domain.DiscountCode, error) {
	var discount domain.DiscountCode
	err := s.coll.FindOne(ctx, bson.M{
		"code":      code,
		"isActive":  true,
		"isDeleted": false,
		"startDate": bson.M{"$lte": now},
		"endDate":   bson.M{"$gte": now},
	}).Decode(&discount)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrDiscountNotFound
		}
		return nil, domain.Internal(err, "discount.find", "failed to find discount code")
	}
	return &discount, nil
}

// ApplyUsage is the at-most-once discount decision. The filter excludes
// documents already holding the user, and $addToSet plus $inc happen in the
// same update, so of two concurrent orders by the same user exactly one
// matches and the other reports ErrDiscountAlreadyUsed.
func (s *DiscountStore) ApplyUsage(ctx context.Context, code string, userID primitive.ObjectID) error {
	const op = "discount.apply_usage"

	filter := bson.M{
		"code":        code,
		"isActive":    true,
		"isDeleted":   false,
		"usedByUsers": bson.M{"$ne": userID},
		"$or": bson.A{
			bson.M{"maxUsage": nil},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$usageCount", "$maxUsage"}}},
		},
	}

	res, err := s.coll.UpdateOne(ctx, filter, bson.M{
		"$inc":      bson.M{"usageCount": 1},
		"$addToSet": bson.M{"usedByUsers": userID},
		"$set":      bson.M{"updatedAt": time.Now()},
	})
	if err != nil {
		return domain.Internal(err, op, "failed to record discount usage")
	}
	if res.MatchedCount == 0 {
		// Distinguish "user already recorded" from "no such active code".
		count, err := s.coll.CountDocuments(ctx, bson.M{"code": code, "isActive": true, "isDeleted": false})
		if err != nil {
			return domain.Internal(err, op, "failed to record discount usage")
		}
		if count == 0 {
			return domain.ErrDiscountNotFound
		}
		return domain.ErrDiscountAlreadyUsed
	}
	return nil
}
