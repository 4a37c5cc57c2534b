package snapshot

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/viewgrid/viewgrid/pkg/errors"
)

// MongoStore persists snapshots in a MongoDB collection, one document per
// view keyed by view ID. The latest save wins; history is out of scope.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// mongoDoc wraps a snapshot with its document identity.
type mongoDoc struct {
	ViewID   string   `bson:"_id"`
	SaveID   string   `bson:"save_id"`
	Snapshot Snapshot `bson:"snapshot"`
}

// NewMongoStore connects to MongoDB and returns a store over the given
// database and collection.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePersistence, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodePersistence, err, "ping mongodb")
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// Save upserts the view's snapshot document and returns the new save ID.
func (m *MongoStore) Save(ctx context.Context, viewID string, s Snapshot) (string, error) {
	if err := errors.ValidateViewID(viewID); err != nil {
		return "", err
	}
	s.ViewID = viewID
	doc := mongoDoc{
		ViewID:   viewID,
		SaveID:   uuid.NewString(),
		Snapshot: s,
	}
	_, err := m.collection.ReplaceOne(ctx,
		bson.M{"_id": viewID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodePersistence, err, "save snapshot for view %s", viewID)
	}
	return doc.SaveID, nil
}

// Load fetches the view's snapshot, or nil if the document doesn't exist.
func (m *MongoStore) Load(ctx context.Context, viewID string) (*Snapshot, error) {
	var doc mongoDoc
	err := m.collection.FindOne(ctx, bson.M{"_id": viewID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePersistence, err, "load snapshot for view %s", viewID)
	}
	return &doc.Snapshot, nil
}

// Delete removes the view's snapshot document.
func (m *MongoStore) Delete(ctx context.Context, viewID string) error {
	_, err := m.collection.DeleteOne(ctx, bson.M{"_id": viewID})
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistence, err, "delete snapshot for view %s", viewID)
	}
	return nil
}

// Close disconnects the underlying client.
func (m *MongoStore) Close() error {
	return m.client.Disconnect(context.Background())
}

var _ Store = (*MongoStore)(nil)
