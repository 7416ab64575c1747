package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hearthlabs/hearth/trigger"
)

// triggerDoc is the collection schema for one trigger.
type triggerDoc struct {
	ID          string            `bson:"_id"`
	Owner       string            `bson:"owner"`
	Description string            `bson:"description"`
	Condition   trigger.Condition `bson:"condition"`
	Action      string            `bson:"action"`
	Status      string            `bson:"status"`
	CreatedAt   time.Time         `bson:"created_at"`
	FiredAt     *time.Time        `bson:"fired_at,omitempty"`
	ExpiresAt   *time.Time        `bson:"expires_at,omitempty"`
}

func toTriggerDoc(t *trigger.Trigger) *triggerDoc {
	return &triggerDoc{
		ID:          t.ID,
		Owner:       t.Owner,
		Description: t.Description,
		Condition:   t.Condition,
		Action:      string(t.Action),
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.UTC(),
		FiredAt:     t.FiredAt,
		ExpiresAt:   t.ExpiresAt,
	}
}

func (d *triggerDoc) toTrigger() *trigger.Trigger {
	return &trigger.Trigger{
		ID:          d.ID,
		Owner:       d.Owner,
		Description: d.Description,
		Condition:   d.Condition,
		Action:      json.RawMessage(d.Action),
		Status:      trigger.Status(d.Status),
		CreatedAt:   d.CreatedAt.UTC(),
		FiredAt:     d.FiredAt,
		ExpiresAt:   d.ExpiresAt,
	}
}

// TriggerStore implements trigger.Store on MongoDB.
type TriggerStore struct {
	coll   *mongo.Collection
	logger zerolog.Logger
}

// NewTriggerStore creates a TriggerStore over db.
func NewTriggerStore(db *mongo.Database, logger zerolog.Logger) *TriggerStore {
	return &TriggerStore{
		coll:   db.Collection(triggersCollection),
		logger: logger.With().Str("component", "trigger_store").Logger(),
	}
}

func (s *TriggerStore) Insert(ctx context.Context, t *trigger.Trigger) error {
	if _, err := s.coll.InsertOne(ctx, toTriggerDoc(t)); err != nil {
		return trigger.NewStoreUnavailableError("insert trigger", err)
	}
	return nil
}

func (s *TriggerStore) Get(ctx context.Context, id string) (*trigger.Trigger, error) {
	var doc triggerDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, trigger.NewNotFoundError(id)
		}
		return nil, trigger.NewStoreUnavailableError("fetch trigger", err)
	}
	return doc.toTrigger(), nil
}

func (s *TriggerStore) List(ctx context.Context, filter trigger.Filter) ([]*trigger.Trigger, error) {
	query := bson.M{}
	if filter.Owner != "" {
		query["owner"] = filter.Owner
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, trigger.NewStoreUnavailableError("list triggers", err)
	}

	var docs []triggerDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, trigger.NewStoreUnavailableError("decode triggers", err)
	}

	out := make([]*trigger.Trigger, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toTrigger())
	}
	return out, nil
}

func (s *TriggerStore) Transition(ctx context.Context, id string, to trigger.Status, firedAt time.Time) (*trigger.Trigger, error) {
	sets := bson.M{"status": string(to)}
	if to == trigger.StatusFired {
		sets["fired_at"] = firedAt.UTC()
	}

	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": string(trigger.StatusPending)},
		bson.M{"$set": sets},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var doc triggerDoc
	err := res.Decode(&doc)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, trigger.NewStoreUnavailableError("transition trigger", err)
		}
		// No pending row matched. Re-read to tell unknown from settled.
		t, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, trigger.NewStatusConflictError(id, t.Status)
	}

	s.logger.Debug().
		Str("method", "Transition").
		Str("trigger_id", id).
		Str("to", string(to)).
		Msg("status updated")
	return doc.toTrigger(), nil
}
