package usecase

import (
	"regexp"
	"sort"
	"strconv"
)

var citationPattern = regexp.MustCompile(`\[Document (\d+)\]`)

// ExtractCitations collects the [Document N] references in an answer
// that point at actual source positions (1-based, at most sourceCount),
// deduplicated and ascending. References outside the source list are
// dropped: the model cited a document it was never given.
func ExtractCitations(answer string, sourceCount int) []int {
	matches := citationPattern.FindAllStringSubmatch(answer, -1)
	seen := make(map[int]struct{}, len(matches))
	for _, match := range matches {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 || n > sourceCount {
			continue
		}
		seen[n] = struct{}{}
	}

	cited := make([]int, 0, len(seen))
	for n := range seen {
		cited = append(cited, n)
	}
	sort.Ints(cited)
	return cited
}
