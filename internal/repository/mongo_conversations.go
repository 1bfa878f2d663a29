package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fathima-sithara/studycircle-realtime/internal/models"
)

type mongoConversations struct {
	col *mongo.Collection
}

// FindOrCreate upserts on the unique participant key. Two concurrent
// callers may both attempt the insert; the one that loses the unique
// index race re-reads the winner's document.
func (r *mongoConversations) FindOrCreate(ctx context.Context, a, b string, now time.Time) (*models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := models.PairKey(a, b)
	filter := bson.M{"participant_key": key}
	doc := bson.M{
		"_id":             uuid.NewString(),
		"participants":    models.SortedPair(a, b),
		"participant_key": key,
		"unread_counts":   bson.M{},
		"created_at":      now,
		"updated_at":      now,
	}

	var c models.Conversation
	err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$setOnInsert": doc},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if mongo.IsDuplicateKeyError(err) {
		err = r.col.FindOne(ctx, filter).Decode(&c)
	}
	if err != nil {
		return nil, notFound(err, "conversation")
	}
	if c.UnreadCounts == nil {
		c.UnreadCounts = map[string]int{}
	}
	return &c, nil
}

func (r *mongoConversations) Get(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	if err := findByID(ctx, r.col, id, &c, "conversation"); err != nil {
		return nil, err
	}
	if c.UnreadCounts == nil {
		c.UnreadCounts = map[string]int{}
	}
	return &c, nil
}

func (r *mongoConversations) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	return findAll[models.Conversation](ctx, r.col, bson.M{"participants": userID}, opts)
}

func (r *mongoConversations) RecordMessage(ctx context.Context, id, messageID, recipient string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"last_message": messageID, "updated_at": now},
		"$inc": bson.M{"unread_counts." + recipient: 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return notFound(mongo.ErrNoDocuments, "conversation")
	}
	return nil
}

func (r *mongoConversations) ResetUnread(ctx context.Context, id, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"unread_counts." + userID: 0}})
	return err
}

func (r *mongoConversations) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.col, id, "conversation")
}
