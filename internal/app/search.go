package app

import (
	"github.com/sahilm/fuzzy"

	"github.com/evanschultz/weekplan/internal/domain"
)

// searchSource adapts tasks to fuzzy.Source over title and description.
type searchSource []domain.Task

func (s searchSource) String(i int) string {
	if s[i].Description == "" {
		return s[i].Title
	}
	return s[i].Title + " " + s[i].Description
}

func (s searchSource) Len() int { return len(s) }

// rankTasks orders candidates by fuzzy score. When keepUnmatched is set the backend already
// filtered the candidates, so tasks the fuzzy matcher misses are kept after the ranked ones.
func rankTasks(query string, candidates []domain.Task, keepUnmatched bool) []domain.Task {
	matches := fuzzy.FindFrom(query, searchSource(candidates))
	out := make([]domain.Task, 0, len(candidates))
	ranked := make(map[int]struct{}, len(matches))
	for _, match := range matches {
		ranked[match.Index] = struct{}{}
		out = append(out, candidates[match.Index])
	}
	if !keepUnmatched {
		return out
	}
	for idx, task := range candidates {
		if _, ok := ranked[idx]; !ok {
			out = append(out, task)
		}
	}
	return out
}
