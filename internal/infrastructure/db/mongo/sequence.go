package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionCounters = "counters"

// SequenceGenerator hands out monotonic integer ids from a counters collection.
// Each call is a single atomic $inc, so concurrent callers never share an id.
type SequenceGenerator struct {
	col *mongo.Collection
}

func NewSequenceGenerator(db *mongo.Database) *SequenceGenerator {
	return &SequenceGenerator{col: db.Collection(collectionCounters)}
}

type counterDocument struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

// Next increments and returns the named sequence, creating it at 1.
func (g *SequenceGenerator) Next(ctx context.Context, name string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDocument
	err := g.col.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next sequence %q: %w", name, err)
	}
	return doc.Seq, nil
}
