package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
)

const (
	opTimeout   = 3 * time.Second
	listTimeout = 5 * time.Second
)

// Connect dials MongoDB and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// NewMongoStore wires every repository onto db and creates the indexes
// the queries rely on.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*Store, error) {
	msgs := &mongoMessages{col: db.Collection("messages")}
	convs := &mongoConversations{col: db.Collection("conversations")}
	notes := &mongoNotes{col: db.Collection("notes")}
	threads := &mongoThreads{col: db.Collection("threads")}
	replies := &mongoReplies{col: db.Collection("replies")}

	if err := ensureIndexes(ctx, db); err != nil {
		return nil, err
	}
	return &Store{
		Messages:      msgs,
		Conversations: convs,
		Notes:         notes,
		Threads:       threads,
		Replies:       replies,
		Directory:     &mongoDirectory{users: db.Collection("users"), groups: db.Collection("groups")},
	}, nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	specs := map[string][]mongo.IndexModel{
		"messages": {
			{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		"conversations": {
			{Keys: bson.D{{Key: "participant_key", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}}},
		},
		"notes":   {{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "created_at", Value: -1}}}},
		"threads": {{Keys: bson.D{{Key: "group_id", Value: 1}}}},
		"replies": {
			{Keys: bson.D{{Key: "note_id", Value: 1}}},
			{Keys: bson.D{{Key: "thread_id", Value: 1}}},
		},
	}
	for col, idx := range specs {
		if _, err := db.Collection(col).Indexes().CreateMany(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

// notFound maps the driver's empty result onto the domain error.
func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFound(what)
	}
	return err
}

// likesToggle is an update pipeline that adds userID to likes when
// absent and removes it when present, in one server side step.
func likesToggle(userID string, now time.Time) mongo.Pipeline {
	likes := bson.D{{Key: "$ifNull", Value: bson.A{"$likes", bson.A{}}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "likes", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$in", Value: bson.A{userID, likes}}},
				bson.D{{Key: "$filter", Value: bson.D{
					{Key: "input", Value: likes},
					{Key: "as", Value: "u"},
					{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$u", userID}}}},
				}}},
				bson.D{{Key: "$concatArrays", Value: bson.A{likes, bson.A{userID}}}},
			}}}},
			{Key: "updated_at", Value: now},
		}}},
	}
}

func toggleLike(ctx context.Context, col *mongo.Collection, id, userID string, now time.Time, out interface{}, what string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res := col.FindOneAndUpdate(ctx, bson.M{"_id": id}, likesToggle(userID, now),
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	return notFound(res.Decode(out), what)
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	cur, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findByID(ctx context.Context, col *mongo.Collection, id string, out interface{}, what string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return notFound(col.FindOne(ctx, bson.M{"_id": id}).Decode(out), what)
}

func deleteByID(ctx context.Context, col *mongo.Collection, id, what string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound(what)
	}
	return nil
}

// idCandidates matches ids stored either as strings or as ObjectIDs,
// since the user and group collections are written by other services.
func idCandidates(ids ...string) bson.A {
	out := bson.A{}
	for _, id := range ids {
		out = append(out, id)
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}
