package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hearthlabs/hearth/memory"
)

// interactionDoc mirrors memory.InteractionRecord with bson encoding.
type interactionDoc struct {
	Instruction  string    `bson:"instruction"`
	RequestIndex int       `bson:"request_idx"`
	Date         string    `bson:"date"`
	At           time.Time `bson:"at"`
}

// memoryDoc is the collection schema for one user's memory.
type memoryDoc struct {
	UserID    string              `bson:"_id"`
	History   []interactionDoc    `bson:"history"`
	Profile   map[string][]string `bson:"profile,omitempty"`
	UpdatedAt time.Time           `bson:"updated_at"`
}

// MemoryStore implements memory.Store on MongoDB.
type MemoryStore struct {
	coll   *mongo.Collection
	logger zerolog.Logger
}

// NewMemoryStore creates a MemoryStore over db.
func NewMemoryStore(db *mongo.Database, logger zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		coll:   db.Collection(memoriesCollection),
		logger: logger.With().Str("component", "memory_store").Logger(),
	}
}

func (s *MemoryStore) Load(ctx context.Context, userID string) (*memory.UserMemory, error) {
	var doc memoryDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, memory.NewNotFoundError(userID)
		}
		return nil, memory.NewStoreUnavailableError("fetch user memory", err)
	}

	out := &memory.UserMemory{
		UserID:    doc.UserID,
		History:   make([]memory.InteractionRecord, 0, len(doc.History)),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
	for _, rec := range doc.History {
		out.History = append(out.History, memory.InteractionRecord{
			Instruction:  rec.Instruction,
			RequestIndex: rec.RequestIndex,
			Date:         rec.Date,
			At:           rec.At.UTC(),
		})
	}
	if doc.Profile != nil {
		out.Profile = memory.Profile(doc.Profile)
	}
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, doc *memory.UserMemory) error {
	stored := memoryDoc{
		UserID:    doc.UserID,
		History:   make([]interactionDoc, 0, len(doc.History)),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	for _, rec := range doc.History {
		stored.History = append(stored.History, interactionDoc{
			Instruction:  rec.Instruction,
			RequestIndex: rec.RequestIndex,
			Date:         rec.Date,
			At:           rec.At.UTC(),
		})
	}
	if doc.Profile != nil {
		stored.Profile = map[string][]string(doc.Profile)
	}

	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": doc.UserID},
		stored,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return memory.NewStoreUnavailableError("save user memory", err)
	}

	s.logger.Debug().
		Str("method", "Save").
		Str("user_id", doc.UserID).
		Int("records", len(doc.History)).
		Msg("document saved")
	return nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, memory.NewStoreUnavailableError("list users", err)
	}

	var docs []struct {
		UserID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, memory.NewStoreUnavailableError("decode user ids", err)
	}

	users := make([]string, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.UserID)
	}
	return users, nil
}
