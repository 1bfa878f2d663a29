package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fathima-sithara/studycircle-realtime/internal/models"
)

type mongoNotes struct {
	col *mongo.Collection
}

func (r *mongoNotes) Insert(ctx context.Context, n *models.Note) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if n.Files == nil {
		n.Files = []models.Attachment{}
	}
	if n.Likes == nil {
		n.Likes = []string{}
	}
	_, err := r.col.InsertOne(ctx, n)
	return err
}

func (r *mongoNotes) Get(ctx context.Context, id string) (*models.Note, error) {
	var n models.Note
	if err := findByID(ctx, r.col, id, &n, "note"); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *mongoNotes) ListByGroup(ctx context.Context, groupID string) ([]models.Note, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findAll[models.Note](ctx, r.col, bson.M{"group_id": groupID}, opts)
}

func (r *mongoNotes) ToggleLike(ctx context.Context, id, userID string, now time.Time) (*models.Note, error) {
	var n models.Note
	if err := toggleLike(ctx, r.col, id, userID, now, &n, "note"); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *mongoNotes) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.col, id, "note")
}

type mongoThreads struct {
	col *mongo.Collection
}

func (r *mongoThreads) Insert(ctx context.Context, t *models.Thread) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if t.Likes == nil {
		t.Likes = []string{}
	}
	_, err := r.col.InsertOne(ctx, t)
	return err
}

func (r *mongoThreads) Get(ctx context.Context, id string) (*models.Thread, error) {
	var t models.Thread
	if err := findByID(ctx, r.col, id, &t, "thread"); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *mongoThreads) View(ctx context.Context, id string) (*models.Thread, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var t models.Thread
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"view_count": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&t)
	if err != nil {
		return nil, notFound(err, "thread")
	}
	return &t, nil
}

func (r *mongoThreads) ToggleLike(ctx context.Context, id, userID string, now time.Time) (*models.Thread, error) {
	var t models.Thread
	if err := toggleLike(ctx, r.col, id, userID, now, &t, "thread"); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *mongoThreads) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.col, id, "thread")
}

type mongoReplies struct {
	col *mongo.Collection
}

func (r *mongoReplies) Insert(ctx context.Context, rp *models.Reply) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if rp.Likes == nil {
		rp.Likes = []string{}
	}
	_, err := r.col.InsertOne(ctx, rp)
	return err
}

func (r *mongoReplies) Get(ctx context.Context, id string) (*models.Reply, error) {
	var rp models.Reply
	if err := findByID(ctx, r.col, id, &rp, "reply"); err != nil {
		return nil, err
	}
	return &rp, nil
}

var oldestFirst = options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

func (r *mongoReplies) ListByNotes(ctx context.Context, noteIDs []string) ([]models.Reply, error) {
	if len(noteIDs) == 0 {
		return []models.Reply{}, nil
	}
	return findAll[models.Reply](ctx, r.col, bson.M{"note_id": bson.M{"$in": noteIDs}}, oldestFirst)
}

func (r *mongoReplies) ListByThread(ctx context.Context, threadID string) ([]models.Reply, error) {
	return findAll[models.Reply](ctx, r.col, bson.M{"thread_id": threadID}, oldestFirst)
}

func (r *mongoReplies) ToggleLike(ctx context.Context, id, userID string, now time.Time) (*models.Reply, error) {
	var rp models.Reply
	if err := toggleLike(ctx, r.col, id, userID, now, &rp, "reply"); err != nil {
		return nil, err
	}
	return &rp, nil
}

func (r *mongoReplies) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.col, id, "reply")
}

func (r *mongoReplies) deleteMany(ctx context.Context, filter bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	_, err := r.col.DeleteMany(ctx, filter)
	return err
}

func (r *mongoReplies) DeleteByNote(ctx context.Context, noteID string) error {
	return r.deleteMany(ctx, bson.M{"note_id": noteID})
}

func (r *mongoReplies) DeleteByThread(ctx context.Context, threadID string) error {
	return r.deleteMany(ctx, bson.M{"thread_id": threadID})
}
