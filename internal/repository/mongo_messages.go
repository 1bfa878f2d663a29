package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fathima-sithara/studycircle-realtime/internal/apperr"
	"github.com/fathima-sithara/studycircle-realtime/internal/models"
)

type mongoMessages struct {
	col *mongo.Collection
}

func (r *mongoMessages) Insert(ctx context.Context, m *models.Message) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if m.Files == nil {
		m.Files = []models.Attachment{}
	}
	if m.Likes == nil {
		m.Likes = []string{}
	}
	_, err := r.col.InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.ErrConflict
	}
	return err
}

func (r *mongoMessages) Get(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := findByID(ctx, r.col, id, &m, "message"); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mongoMessages) GetMany(ctx context.Context, ids []string) (map[string]models.Message, error) {
	out := make(map[string]models.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := findAll[models.Message](ctx, r.col, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, m := range list {
		out[m.ID] = m
	}
	return out, nil
}

var chronological = options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

func (r *mongoMessages) ListByGroup(ctx context.Context, groupID string) ([]models.Message, error) {
	return findAll[models.Message](ctx, r.col, bson.M{"group_id": groupID}, chronological)
}

func (r *mongoMessages) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	return findAll[models.Message](ctx, r.col, bson.M{"conversation_id": conversationID}, chronological)
}

func (r *mongoMessages) ToggleLike(ctx context.Context, id, userID string, now time.Time) (*models.Message, error) {
	var m models.Message
	if err := toggleLike(ctx, r.col, id, userID, now, &m, "message"); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *mongoMessages) MarkDeleted(ctx context.Context, id, actor string, now time.Time) (*models.Message, bool, error) {
	cctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var m models.Message
	err := r.col.FindOneAndUpdate(cctx,
		bson.M{"_id": id, "sender": actor, "is_deleted": false},
		bson.M{"$set": bson.M{"is_deleted": true, "deleted_by": actor, "updated_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err == nil {
		return &m, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	// the filter missed: tell apart unknown, foreign and already deleted
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if current.Sender != actor {
		return nil, false, apperr.Forbidden("only the sender can delete this message")
	}
	return current, false, nil
}

func (r *mongoMessages) DeleteByConversation(ctx context.Context, conversationID string) error {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	_, err := r.col.DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	return err
}
