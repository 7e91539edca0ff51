package upload

// SimpleProgress is loaded/total as a percentage. ok is false when the
// total is unknown, in which case the event must be ignored.
func SimpleProgress(loaded, total int64) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	return clampPercent(float64(loaded) / float64(total) * 100), true
}

// ChunkedProgress combines the bytes of the parts before part (all of which
// are complete, since parts go out one at a time) with the bytes loaded so
// far for part itself.
func ChunkedProgress(part int, chunkSize, loaded, partLen, fileSize int64) (float64, bool) {
	if partLen <= 0 || fileSize <= 0 {
		return 0, false
	}
	loaded = min(max(loaded, 0), partLen)
	done := int64(part-1) * chunkSize
	return clampPercent(float64(done+loaded) / float64(fileSize) * 100), true
}

func clampPercent(p float64) float64 {
	return min(max(p, 0), 100)
}
