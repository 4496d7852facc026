package dedup

import "strings"

// Ratio measures the similarity of two strings in [0, 1] as twice the number
// of matched characters over the combined length. Matching is computed from
// the longest common blocks, so transposed words still score high while
// unrelated strings score near zero.
func Ratio(a, b string) float64 {
	ra := []rune(strings.ToLower(strings.TrimSpace(a)))
	rb := []rune(strings.ToLower(strings.TrimSpace(b)))
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	matched := matchedChars(ra, rb)
	return 2 * float64(matched) / float64(len(ra)+len(rb))
}

// matchedChars sums the sizes of the longest common blocks, recursing into
// the regions on either side of each block.
func matchedChars(a, b []rune) int {
	ai, bi, size := longestBlock(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchedChars(a[:ai], b[:bi])
	total += matchedChars(a[ai+size:], b[bi+size:])
	return total
}

// longestBlock finds the longest run of runes common to a and b and returns
// its start offsets and length.
func longestBlock(a, b []rune) (int, int, int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	positions := make(map[rune][]int, len(b))
	for j, r := range b {
		positions[r] = append(positions[r], j)
	}

	bestA, bestB, bestSize := 0, 0, 0
	// lengths[j] holds the size of the match ending at a[i-1], b[j-1].
	lengths := make(map[int]int)
	for i, r := range a {
		next := make(map[int]int, len(positions[r]))
		for _, j := range positions[r] {
			size := lengths[j-1] + 1
			next[j] = size
			if size > bestSize {
				bestA, bestB, bestSize = i-size+1, j-size+1, size
			}
		}
		lengths = next
	}
	return bestA, bestB, bestSize
}
