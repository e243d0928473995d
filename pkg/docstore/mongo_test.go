package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestUpdateOperatorsTranslateTransforms(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	update, err := updateOperators(Fields{
		"title":     "Scales",
		"updatedAt": ServerTimestamp(),
		"students":  ArrayUnion("s1"),
		"former":    ArrayRemove("s2"),
	}, now)
	require.NoError(t, err)

	set := update["$set"].(bson.M)
	assert.Equal(t, "Scales", set["data.title"])
	assert.Equal(t, bson.M{"seconds": now.Unix(), "nanoseconds": int64(0)}, set["data.updatedAt"])
	assert.Equal(t, now, set["updatedAt"])
	assert.Equal(t, bson.M{"data.students": bson.M{"$each": bson.A{"s1"}}}, update["$addToSet"])
	assert.Equal(t, bson.M{"data.former": bson.M{"$in": bson.A{"s2"}}}, update["$pull"])
}

func TestMongoDocumentDecodesIntegers(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"createdAt": bson.M{"seconds": int64(1714557600), "nanoseconds": int64(0)}, "title": "x"})
	require.NoError(t, err)

	doc, err := mongoDocument{ID: "l1", Data: raw}.document()
	require.NoError(t, err)

	var out struct {
		CreatedAt struct {
			Seconds int64 `json:"seconds"`
		} `json:"createdAt"`
	}
	require.NoError(t, doc.DataTo(&out))
	assert.Equal(t, int64(1714557600), out.CreatedAt.Seconds)
}

func TestToBSONKeepsFractions(t *testing.T) {
	assert.Equal(t, 1.5, toBSON(1.5))
	assert.Equal(t, int64(3), toBSON(float64(3)))
}
