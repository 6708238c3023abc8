// Package batch splits ordered collections into bounded-size chunks for
// the marketplace API, which caps how many price edits one call may carry.
package batch

// Split partitions items into chunks of at most maxSize elements, preserving
// order. The last chunk may be shorter. An empty input yields no chunks, and
// a non-positive maxSize returns everything as a single chunk.
func Split[T any](items []T, maxSize int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if maxSize <= 0 {
		return [][]T{items}
	}

	chunks := make([][]T, 0, (len(items)+maxSize-1)/maxSize)
	for start := 0; start < len(items); start += maxSize {
		end := start + maxSize
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
