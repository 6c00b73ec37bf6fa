package utils

import (
	"strings"
)

// NormalizeForCompare lower-cases and trims s before similarity comparison.
func NormalizeForCompare(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Levenshtein 计算两个字符串之间的编辑距离（插入、删除、替换各计 1 次），按 rune 比较
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// 只保留两行 DP 矩阵
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity returns 1 - distance/maxLen over the normalized strings, in [0, 1].
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	a, b = NormalizeForCompare(a), NormalizeForCompare(b)
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(Levenshtein(a, b))/float64(maxLen)
}
