package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"recap_server/core/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionRecaps = "recaps"

// RecapAdapter implements domain.RecapRepository using MongoDB. The
// collection is append-only: regeneration inserts a new document and
// "latest" is decided by generated_at.
type RecapAdapter struct {
	db         *mongo.Database
	collection *mongo.Collection
}

// NewRecapAdapter creates a new MongoDB recap adapter.
func NewRecapAdapter(db *mongo.Database) *RecapAdapter {
	collection := db.Collection(collectionRecaps)
	return &RecapAdapter{
		db:         db,
		collection: collection,
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *RecapAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "date", Value: 1},
				{Key: "type", Value: 1},
				{Key: "generated_at", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "generated_at", Value: -1},
			},
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// recapDocument represents the MongoDB document structure. Bucket contents
// are stored as JSON blobs so document shape changes never require a
// collection migration.
type recapDocument struct {
	ID          string    `bson:"id"`
	UserID      string    `bson:"user_id"`
	Type        string    `bson:"type"`
	Date        string    `bson:"date"`
	GeneratedAt time.Time `bson:"generated_at"`
	Content     []byte    `bson:"content"`
}

// Insert appends a recap document. Existing documents are never replaced.
func (a *RecapAdapter) Insert(ctx context.Context, recap *domain.Recap) error {
	doc, err := toDocument(recap)
	if err != nil {
		return fmt.Errorf("failed to convert recap to document: %w", err)
	}

	if _, err := a.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert recap: %w", err)
	}
	return nil
}

// Latest returns the most recently generated recap for (user, date, type),
// or nil when none exists.
func (a *RecapAdapter) Latest(ctx context.Context, userID uuid.UUID, date string, recapType domain.RecapType) (*domain.Recap, error) {
	filter := bson.M{
		"user_id": userID.String(),
		"date":    date,
		"type":    string(recapType),
	}

	findOpts := options.FindOne().SetSort(bson.D{{Key: "generated_at", Value: -1}})

	var doc recapDocument
	err := a.collection.FindOne(ctx, filter, findOpts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest recap: %w", err)
	}

	return toRecap(&doc)
}

// History returns recaps for a user, newest first.
func (a *RecapAdapter) History(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Recap, error) {
	filter := bson.M{"user_id": userID.String()}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "generated_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list recaps: %w", err)
	}
	defer cursor.Close(ctx)

	var recaps []*domain.Recap
	for cursor.Next(ctx) {
		var doc recapDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode recap: %w", err)
		}

		recap, err := toRecap(&doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert recap: %w", err)
		}
		recaps = append(recaps, recap)
	}

	return recaps, nil
}

func toDocument(recap *domain.Recap) (*recapDocument, error) {
	content, err := json.Marshal(recap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recap content: %w", err)
	}

	return &recapDocument{
		ID:          recap.ID,
		UserID:      recap.UserID.String(),
		Type:        string(recap.Type),
		Date:        recap.Date,
		GeneratedAt: recap.GeneratedAt,
		Content:     content,
	}, nil
}

func toRecap(doc *recapDocument) (*domain.Recap, error) {
	recap := &domain.Recap{}
	if err := json.Unmarshal(doc.Content, recap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recap content: %w", err)
	}
	return recap, nil
}

var _ domain.RecapRepository = (*RecapAdapter)(nil)
