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

// OrderStore implements domain.OrderRepository on MongoDB.
type OrderStore struct {
	coll *mongo.Collection
}

var _ domain.OrderRepository = (*OrderStore)(nil)

// NewOrderStore creates a MongoDB-backed order repository.
func NewOrderStore(db *mongo.Database) *OrderStore {
	return &OrderStore{coll: db.Collection(collOrders)}
}

func (s *OrderStore) Insert(ctx context.Context, order *domain.Order) error {
	res, err := s.coll.InsertOne(ctx, order)
	if err != nil {
		return domain.Internal(err, "order.insert", "failed to insert order")
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}
	return nil
}

func (s *OrderStore) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	return s.findOne(ctx, bson.M{"_id": id, "isDeleted": false})
}

func (s *OrderStore) FindByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.findOne(ctx, bson.M{"orderId": orderID, "isDeleted": false})
}

func (s *OrderStore) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var order domain.Order
	err := s.coll.FindOne(ctx, filter).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, "order.find", "failed to find order")
	}
	return &order, nil
}

func (s *OrderStore) Update(ctx context.Context, order *domain.Order) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": order.ID}, order)
	if err != nil {
		return domain.Internal(err, "order.update", "failed to update order")
	}
	if res.MatchedCount == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (s *OrderStore) SetPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"orderId": orderID},
		bson.M{"$set": bson.M{"paymentStatus": status, "updatedAt": time.Now()}},
	)
	if err != nil {
		return domain.Internal(err, "order.set_payment_status", "failed to update payment status")
	}
	if res.MatchedCount == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (s *OrderStore) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	query := bson.M{"isDeleted": false}
	if filter.PaymentMethod != "" {
		query["paymentMethod"] = filter.PaymentMethod
	}
	if filter.PaymentStatus != "" {
		query["paymentStatus"] = filter.PaymentStatus
	}
	if filter.OrderStatus != "" {
		query["orderStatus"] = filter.OrderStatus
	}
	if filter.ShippingMethod != "" {
		query["shippingMethod"] = filter.ShippingMethod
	}

	sortDir := -1
	if filter.SortBy == "oldest" {
		sortDir = 1
	}

	return s.findAll(ctx, query, options.Find().SetSort(bson.D{{Key: "createdAt", Value: sortDir}}))
}

func (s *OrderStore) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Order, error) {
	return s.findAll(ctx,
		bson.M{"userId": userID, "isDeleted": false},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
}

func (s *OrderStore) ListByProduct(ctx context.Context, productID primitive.ObjectID) ([]domain.Order, error) {
	return s.findAll(ctx,
		bson.M{"items.productId": productID, "isDeleted": false},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
}

func (s *OrderStore) TopByTotalItems(ctx context.Context, limit int) ([]domain.Order, error) {
	return s.findAll(ctx,
		bson.M{"isDeleted": false},
		options.Find().SetSort(bson.D{{Key: "totalItems", Value: -1}}).SetLimit(int64(limit)),
	)
}

func (s *OrderStore) TopByFinalPrice(ctx context.Context, limit int) ([]domain.Order, error) {
	return s.findAll(ctx,
		bson.M{"isDeleted": false},
		options.Find().SetSort(bson.D{{Key: "finalPrice", Value: -1}}).SetLimit(int64(limit)),
	)
}

func (s *OrderStore) findAll(ctx context.Context, query bson.M, opts ...*options.FindOptions) ([]domain.Order, error) {
	cursor, err := s.coll.Find(ctx, query, opts...)
	if err != nil {
		return nil, domain.Internal(err, "order.list", "failed to list orders")
	}
	defer cursor.Close(ctx)

	var orders []domain.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, domain.Internal(err, "order.list", "failed to decode orders")
	}
	return orders, nil
}

// MarkStalledReadyForPickup is a single bounded conditional update: the
// status filter makes it idempotent, so overlapping sweep runs cannot move
// an order twice or touch one a user just cancelled.
func (s *OrderStore) MarkStalledReadyForPickup(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{
			"orderStatus": domain.OrderAwaitingConfirmation,
			"isDeleted":   false,
			"createdAt":   bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{"orderStatus": domain.OrderReadyForPickup, "updatedAt": time.Now()}},
	)
	if err != nil {
		return 0, domain.Internal(err, "order.release_stalled", "failed to release stalled orders")
	}
	return res.ModifiedCount, nil
}
