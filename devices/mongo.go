package devices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hearthlabs/hearth/trigger"
)

// MongoSource reads device state from a MongoDB collection, one document
// per device. This is the demo and test harness source; writes go through
// SetState so a scenario can script the home.
type MongoSource struct {
	coll   *mongo.Collection
	logger zerolog.Logger
}

// deviceStateDoc is the collection schema.
type deviceStateDoc struct {
	DeviceID   string            `bson:"device_id"`
	Attributes map[string]string `bson:"attributes"`
	UpdatedAt  time.Time         `bson:"updated_at"`
}

// NewMongoSource creates a source over db's named collection.
func NewMongoSource(db *mongo.Database, collection string, logger zerolog.Logger) *MongoSource {
	if collection == "" {
		collection = "device_states"
	}
	return &MongoSource{
		coll:   db.Collection(collection),
		logger: logger.With().Str("component", "devices_mongo").Logger(),
	}
}

func (s *MongoSource) GetAllStates(ctx context.Context) (trigger.States, error) {
	cursor, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("fetch device states: %w", err)
	}

	var docs []deviceStateDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode device states: %w", err)
	}

	states := make(trigger.States, len(docs))
	for _, doc := range docs {
		if doc.DeviceID == "" {
			continue
		}
		attrs := make(map[string]string, len(doc.Attributes))
		for k, v := range doc.Attributes {
			attrs[k] = v
		}
		states[doc.DeviceID] = attrs
	}

	s.logger.Debug().
		Str("method", "GetAllStates").
		Int("devices", len(states)).
		Msg("snapshot fetched")
	return states, nil
}

func (s *MongoSource) GetState(ctx context.Context, device, attribute string) (string, error) {
	var doc deviceStateDoc
	err := s.coll.FindOne(ctx, bson.M{"device_id": device}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", fmt.Errorf("unknown device %q", device)
		}
		return "", fmt.Errorf("fetch state of %s: %w", device, err)
	}

	value, ok := doc.Attributes[attribute]
	if !ok {
		return "", fmt.Errorf("device %q has no attribute %q", device, attribute)
	}
	return value, nil
}

// SetState upserts one attribute value, creating the device document on
// first write.
func (s *MongoSource) SetState(ctx context.Context, device, attribute, value string) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"device_id": device},
		bson.M{"$set": bson.M{
			"attributes." + attribute: value,
			"updated_at":              time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("set state of %s.%s: %w", device, attribute, err)
	}

	s.logger.Debug().
		Str("method", "SetState").
		Str("device", device).
		Str("attribute", attribute).
		Str("value", value).
		Msg("state written")
	return nil
}
