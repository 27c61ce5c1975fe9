// Package mongo provides the MongoDB implementation of the settlement
// archive: raw gateway receipts and manual-review escalations.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/remitgrid-transfer-core/internal/domain/settlement"
)

const (
	// ReceiptCollectionName is the name of the gateway receipt collection in MongoDB
	ReceiptCollectionName = "settlement_receipts"
	// EscalationCollectionName is the name of the manual-review collection in MongoDB
	EscalationCollectionName = "review_escalations"
)

// SettlementRepository implements the settlement.Repository interface for MongoDB
type SettlementRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewSettlementRepository creates a new MongoDB settlement repository
func NewSettlementRepository(logger *slog.Logger, db *mongo.Database) settlement.Repository {
	return &SettlementRepository{
		db:     db,
		logger: logger,
	}
}

// SaveReceipt archives a raw gateway response. Receipts are write-once; the
// same transfer accumulates one document per gateway interaction.
func (r *SettlementRepository) SaveReceipt(ctx context.Context, receipt *settlement.Receipt) error {
	collection := r.db.Collection(ReceiptCollectionName)

	_, err := collection.InsertOne(ctx, receipt)
	if err != nil {
		r.logger.Error("Failed to save settlement receipt",
			"transfer_id", receipt.TransferID.String(),
			"kind", string(receipt.Kind),
			"error", err)
		return fmt.Errorf("failed to save settlement receipt: %w", err)
	}

	return nil
}

// GetReceiptsByTransferID retrieves all receipts for a transfer.
// Results are sorted by creation time in ascending order (submission first).
func (r *SettlementRepository) GetReceiptsByTransferID(ctx context.Context, transferID uuid.UUID) ([]*settlement.Receipt, error) {
	collection := r.db.Collection(ReceiptCollectionName)

	filter := bson.M{"transfer_id": transferID}
	opts := options.Find().SetSort(bson.M{"created_at": 1})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get settlement receipts",
			"transfer_id", transferID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get settlement receipts: %w", err)
	}
	defer cursor.Close(ctx)

	var receipts []*settlement.Receipt
	if err := cursor.All(ctx, &receipts); err != nil {
		r.logger.Error("Failed to decode settlement receipts",
			"transfer_id", transferID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode settlement receipts: %w", err)
	}

	return receipts, nil
}

// SaveEscalation records a transfer that needs operator attention
func (r *SettlementRepository) SaveEscalation(ctx context.Context, escalation *settlement.ReviewEscalation) error {
	collection := r.db.Collection(EscalationCollectionName)

	_, err := collection.InsertOne(ctx, escalation)
	if err != nil {
		r.logger.Error("Failed to save review escalation",
			"transfer_id", escalation.TransferID.String(),
			"error", err)
		return fmt.Errorf("failed to save review escalation: %w", err)
	}

	return nil
}

// ListOpenEscalations retrieves pending escalations, oldest first, so the
// operator queue drains in arrival order
func (r *SettlementRepository) ListOpenEscalations(ctx context.Context, limit int) ([]*settlement.ReviewEscalation, error) {
	collection := r.db.Collection(EscalationCollectionName)

	opts := options.Find().
		SetSort(bson.M{"created_at": 1}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to list review escalations", "error", err)
		return nil, fmt.Errorf("failed to list review escalations: %w", err)
	}
	defer cursor.Close(ctx)

	var escalations []*settlement.ReviewEscalation
	if err := cursor.All(ctx, &escalations); err != nil {
		r.logger.Error("Failed to decode review escalations", "error", err)
		return nil, fmt.Errorf("failed to decode review escalations: %w", err)
	}

	return escalations, nil
}
