// Package mongodb registers the "mongodb" stage: inserts each event as a
// document, grounded on
// original_source/test/test_outputs.py::MongodbTests.
package mongodb

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("mongodb", New)
}

type mongoOutput struct {
	*stage.StageBase

	client     *mongo.Client
	collection *mongo.Collection
}

// New builds the "mongodb" output. Options: "url" (default
// "mongodb://localhost:27017"), "database" (default "logcabin"),
// "collection" (default "events"). The client connects lazily on the
// first event so a misconfigured/unreachable server doesn't block graph
// construction.
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(opts.String("url", "mongodb://localhost:27017")))
	if err != nil {
		return nil, fmt.Errorf("%w: mongodb: %w", stage.ErrConfiguration, err)
	}

	m := &mongoOutput{
		client:     client,
		collection: client.Database(opts.String("database", "logcabin")).Collection(opts.String("collection", "events")),
	}
	m.StageBase = stage.New(name, m, opts.Int("queue_size", 64), logger)
	return m, nil
}

func (m *mongoOutput) Process(ev *event.Event) (bool, error) {
	doc := ev.Fields()
	doc["timestamp"] = ev.Timestamp
	if len(ev.Tags) > 0 {
		doc["tags"] = ev.Tags
	}
	if _, err := m.collection.InsertOne(m.Ctx, doc); err != nil {
		return false, fmt.Errorf("mongodb: %w", err)
	}
	return false, nil
}

func (m *mongoOutput) Stop() {
	m.StageBase.Stop()
	m.client.Disconnect(m.Ctx)
}
