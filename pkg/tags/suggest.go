package tags

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

const (
	suggestThreshold = 0.6
	suggestLimit     = 3
)

type match struct {
	path  string
	score float64
}

// Suggest returns up to three known tag paths that look like tagPath.
func (l *Library) Suggest(tagPath string) []string {
	if tagPath == "" {
		return nil
	}
	known, err := l.List()
	if err != nil {
		return nil
	}

	query := strings.ToLower(tagPath)
	var matches []match
	for _, p := range known {
		if p == tagPath {
			continue
		}
		if score := similarity(query, strings.ToLower(p)); score >= suggestThreshold {
			matches = append(matches, match{path: p, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].path < matches[j].path
	})

	if len(matches) > suggestLimit {
		matches = matches[:suggestLimit]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.path
	}
	return out
}

// similarity is the better of the whole-path score and the mean best score
// of each query segment against the candidate's segments.
func similarity(query, candidate string) float64 {
	global := ratio(query, candidate)

	qParts := segments(query)
	cParts := segments(candidate)
	total := 0.0
	for _, q := range qParts {
		best := 0.0
		for _, c := range cParts {
			if s := ratio(q, c); s > best {
				best = s
			}
		}
		total += best
	}
	segmentScore := 0.0
	if len(qParts) > 0 && len(qParts) == len(cParts) {
		segmentScore = total / float64(len(qParts))
	}

	if segmentScore > global {
		return segmentScore
	}
	return global
}

func ratio(a, b string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.Distance(a, b, nil))/float64(longest)
}

func segments(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '/'
	})
}
