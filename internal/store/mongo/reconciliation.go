package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pttech/commerce/internal/domain"
)

// ReconciliationStore implements domain.ReconciliationQueue on MongoDB.
// Discrepancies are append-only; operators resolve and remove them out of
// band.
type ReconciliationStore struct {
	coll *mongo.Collection
}

var _ domain.ReconciliationQueue = (*ReconciliationStore)(nil)

// NewReconciliationStore creates a MongoDB-backed reconciliation queue.
func NewReconciliationStore(db *mongo.Database) *ReconciliationStore {
	return &ReconciliationStore{coll: db.Collection(collReconciliation)}
}

func (s *ReconciliationStore) Record(ctx context.Context, d domain.StockDiscrepancy) error {
	if _, err := s.coll.InsertOne(ctx, d); err != nil {
		return domain.Internal(err, "reconciliation.record", "failed to record stock discrepancy")
	}
	return nil
}
