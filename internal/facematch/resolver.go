// Package facematch normalizes raw face-search results into the set of
// identities recognized in a single image.
package facematch

// Candidate is one (identity, confidence) pair returned by the matching
// service. A raw search may contain several candidates for the same
// identity when multiple gallery faces of one person match.
type Candidate struct {
	Identity   string  `json:"identity"`
	Confidence float64 `json:"confidence"`
}

// Resolve collapses an ordered candidate sequence into the distinct set of
// identities, at most one hit per identity regardless of how many raw
// matches referenced it. First-seen order is preserved so callers process
// identities deterministically; comparisons should treat the result as a
// set. Empty or nil input resolves to an empty set. Candidates with an
// empty identity are dropped.
//
// Confidence filtering happens upstream in the matching service; this
// function only deduplicates.
func Resolve(matches []Candidate) []string {
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	identities := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Identity == "" {
			continue
		}
		if _, ok := seen[m.Identity]; ok {
			continue
		}
		seen[m.Identity] = struct{}{}
		identities = append(identities, m.Identity)
	}
	return identities
}
