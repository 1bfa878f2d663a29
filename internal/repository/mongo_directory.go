package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDirectory reads the users and groups collections maintained by
// the account and group services. Ids there may be ObjectIDs.
type mongoDirectory struct {
	users  *mongo.Collection
	groups *mongo.Collection
}

func (d *mongoDirectory) Usernames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	type userDoc struct {
		ID       string `bson:"_id"`
		Username string `bson:"username"`
	}
	opts := options.Find().SetProjection(bson.M{"username": 1})
	docs, err := findAll[userDoc](ctx, d.users, bson.M{"_id": bson.M{"$in": idCandidates(ids...)}}, opts)
	if err != nil {
		return nil, err
	}
	for _, u := range docs {
		out[u.ID] = u.Username
	}
	return out, nil
}

func (d *mongoDirectory) IsGroupMember(ctx context.Context, groupID, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	users := idCandidates(userID)
	n, err := d.groups.CountDocuments(ctx, bson.M{
		"_id": bson.M{"$in": idCandidates(groupID)},
		"$or": bson.A{
			bson.M{"members.user": bson.M{"$in": users}},
			bson.M{"creator": bson.M{"$in": users}},
		},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
