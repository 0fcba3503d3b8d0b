package inventory

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// MatchProduct returns the catalog items a user reference could mean.
// An exact case-insensitive name wins on its own. Otherwise items containing
// the reference as a fuzzy subsequence are returned, closest first; when
// nothing matches that way, items within a small edit distance are tried so
// that transposed letters still resolve.
func MatchProduct(reference string, catalog []string) []string {
	ref := strings.TrimSpace(reference)
	if ref == "" || len(catalog) == 0 {
		return nil
	}

	for _, item := range catalog {
		if strings.EqualFold(strings.TrimSpace(item), ref) {
			return []string{item}
		}
	}

	ranks := fuzzy.RankFindNormalizedFold(ref, catalog)
	if len(ranks) > 0 {
		sort.Stable(ranks)
		out := make([]string, 0, len(ranks))
		for _, r := range ranks {
			out = append(out, r.Target)
		}
		return out
	}

	lowerRef := strings.ToLower(ref)
	budget := len(lowerRef)/4 + 1
	type scored struct {
		item string
		dist int
	}
	var near []scored
	for _, item := range catalog {
		lowerItem := strings.ToLower(item)
		best := fuzzy.LevenshteinDistance(lowerRef, lowerItem)
		// compare against the leading words of the item as well, so "tee" is
		// close to "Tea (Green)" and not only to the full name.
		words := strings.Fields(lowerItem)
		for n := 1; n <= len(words); n++ {
			prefix := strings.Join(words[:n], " ")
			if d := fuzzy.LevenshteinDistance(lowerRef, prefix); d < best {
				best = d
			}
		}
		if best <= budget {
			near = append(near, scored{item: item, dist: best})
		}
	}
	sort.SliceStable(near, func(i, j int) bool { return near[i].dist < near[j].dist })
	out := make([]string, 0, len(near))
	for _, s := range near {
		out = append(out, s.item)
	}
	return out
}

// IsAmbiguous reports whether reference names more than one catalog item.
func IsAmbiguous(reference string, catalog []string) ([]string, bool) {
	candidates := MatchProduct(reference, catalog)
	return candidates, len(candidates) > 1
}
