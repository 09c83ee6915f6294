package quality

// simMaxRunes caps the LCS input length; pairwise comparison is quadratic and
// agent outputs can run long.
const simMaxRunes = 2000

// similarityRatio is a ratio-based longest-common-subsequence measure over
// the lowercased inputs: 2·LCS(a,b) / (|a|+|b|), in [0,1]. Two empty strings
// are identical.
func similarityRatio(a, b string) float64 {
	ra := capRunes(a, simMaxRunes)
	rb := capRunes(b, simMaxRunes)
	if len(ra)+len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

func capRunes(s string, n int) []rune {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return r
}
