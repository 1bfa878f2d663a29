package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestLikesTogglePipelineShape(t *testing.T) {
	p := likesToggle("u1", time.Unix(0, 0).UTC())
	require.Len(t, p, 1)

	raw, err := bson.MarshalExtJSON(bson.D{{Key: "p", Value: p}}, false, false)
	require.NoError(t, err)
	s := string(raw)
	for _, op := range []string{"$cond", "$in", "$filter", "$concatArrays", "$ifNull", "$$u"} {
		assert.Contains(t, s, op)
	}
}

func TestIDCandidates(t *testing.T) {
	hex := primitive.NewObjectID().Hex()
	got := idCandidates(hex, "plain")
	require.Len(t, got, 3)
	assert.Equal(t, hex, got[0])
	assert.IsType(t, primitive.ObjectID{}, got[1])
	assert.Equal(t, "plain", got[2])
}
