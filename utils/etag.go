package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerateETag derives a weak validator from a document id and its last update.
func GenerateETag(id primitive.ObjectID, updatedAt time.Time) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s-%d", id.Hex(), updatedAt.UnixNano())))
	return `W/"` + hex.EncodeToString(sum[:8]) + `"`
}

// ListETag covers a page of results: the most recently updated item plus the
// total and the query string, so a new filter or a deletion changes the tag.
func ListETag(latestID primitive.ObjectID, latest time.Time, total int64, query string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s-%d-%d-%s", latestID.Hex(), latest.UnixNano(), total, query)))
	return `W/"` + hex.EncodeToString(sum[:8]) + `"`
}
