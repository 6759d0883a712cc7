package database

// MaxQueryParams bounds the number of bind parameters contributed by a single
// IN clause. Bulk paths (import cascade delete, analytics aggregation) must
// chunk their ID lists with ChunkIDs before querying; this is an operational
// constraint of the store, not an optimization.
const MaxQueryParams = 200

// ChunkIDs splits ids into slices of at most size elements.
func ChunkIDs[T any](ids []T, size int) [][]T {
	if size <= 0 {
		size = MaxQueryParams
	}

	var chunks [][]T
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[i:end])
	}
	return chunks
}
