package ingest

// splitWindows slices blob into overlapping windows of at most window
// characters with overlap characters shared between neighbours.
//
// When a window does not reach the end of the blob, its end is snapped back
// to the nearest preceding newline, provided that newline lies at or past the
// window's midpoint. Snapping avoids cutting mid-sentence while bounding
// worst-case chunk shrinkage to half a window. The next window starts at
// end-overlap, so snapped text is never lost.
func splitWindows(blob string, window, overlap int) []string {
	if blob == "" || window <= 0 {
		return nil
	}
	if overlap >= window {
		overlap = window / 2
	}

	var chunks []string
	i := 0
	for {
		end := i + window
		if end >= len(blob) {
			chunks = append(chunks, blob[i:])
			return chunks
		}

		if nl := lastNewline(blob, i, end); nl >= i+window/2 {
			end = nl + 1
		}
		chunks = append(chunks, blob[i:end])

		next := end - overlap
		if next <= i {
			// Forward progress guard for degenerate window/overlap combos.
			next = end
		}
		i = next
	}
}

// lastNewline returns the index of the last '\n' in blob[start:end], or -1.
func lastNewline(blob string, start, end int) int {
	for j := end - 1; j >= start; j-- {
		if blob[j] == '\n' {
			return j
		}
	}
	return -1
}
