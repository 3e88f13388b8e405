package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// queryHash returns a short digest of the normalized query text.
// Hashing keeps embedded delimiters out of composite cache keys and
// bounds key length regardless of query size.
func queryHash(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

// scopedCacheKey builds the per-user composite key used by the
// retrieval and reranking namespaces.
func scopedCacheKey(query, userID string) string {
	return queryHash(query) + ":" + userID
}

// retrievalCacheKey extends the per-user key with the similarity
// threshold and document scope. A cached candidate list is only valid
// for the exact request shape that produced it: a broader threshold or
// a different document subset yields a different list.
func retrievalCacheKey(q Query, minSimilarity float64) string {
	key := fmt.Sprintf("%s:%.3f", scopedCacheKey(q.Text, q.UserID), minSimilarity)
	if len(q.DocumentIDs) > 0 {
		ids := append([]string(nil), q.DocumentIDs...)
		sort.Strings(ids)
		key += ":" + queryHash(strings.Join(ids, "\x00"))
	}
	return key
}
