package application

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// ErrMalformedReview is returned when no JSON object can be recovered from a
// model response.
var ErrMalformedReview = errors.New("malformed review output")

const (
	maxSummaryRunes = 280
	maxReviewItems  = 8

	// maxReviewContentBytes bounds how much model output is searched for JSON.
	maxReviewContentBytes = 64 << 10
)

// trailingObjectPattern matches from the first '{' to a '}' that ends the text.
var trailingObjectPattern = regexp.MustCompile(`(?s)\{.*\}\s*\z`)

var (
	goodVocabulary  = []string{"good", "pass", "green", "🟢"}
	mixedVocabulary = []string{"mix", "yellow", "🟡"}
)

// extractJSONObject recovers a JSON object from free-form model output. A
// match anchored at the end of the text is preferred; otherwise every
// balanced {...} span is tried in order of appearance. Only the last
// maxReviewContentBytes of s are considered.
func extractJSONObject(s string) (map[string]any, error) {
	if len(s) > maxReviewContentBytes {
		s = s[len(s)-maxReviewContentBytes:]
	}

	var candidates []string
	if m := trailingObjectPattern.FindString(s); m != "" {
		candidates = append(candidates, m)
	}
	candidates = append(candidates, balancedObjects(s)...)

	for _, c := range candidates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(c)), &obj); err == nil && obj != nil {
			return obj, nil
		}
	}

	return nil, ErrMalformedReview
}

type braceSpan struct {
	start, end int
}

// balancedObjects returns every outermost brace-balanced span of s in order
// of appearance, skipping braces inside JSON string literals. Unclosed
// braces are ignored, so spans nested inside them still count. It makes a
// single pass over s.
func balancedObjects(s string) []string {
	var (
		open     []int
		spans    []braceSpan
		inString bool
		escaped  bool
	)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = len(open) > 0
		case '{':
			open = append(open, i)
		case '}':
			if n := len(open); n > 0 {
				spans = append(spans, braceSpan{start: open[n-1], end: i})
				open = open[:n-1]
			}
		}
	}

	slices.SortFunc(spans, func(a, b braceSpan) int { return cmp.Compare(a.start, b.start) })

	out := make([]string, 0, len(spans))
	lastEnd := -1
	for _, sp := range spans {
		if sp.start < lastEnd {
			continue
		}
		out = append(out, s[sp.start:sp.end+1])
		lastEnd = sp.end
	}
	return out
}

// toScore3 maps a numeric or textual grade onto the 3-tier score.
// Numbers: >=3 is 3, >=2 is 2, otherwise 1. Text: any "good" word is 3, any
// "mixed" word is 2, otherwise 1. Single-letter "a"/"b" tokens count as good
// and mixed letter grades.
func toScore3(v any) int {
	switch g := v.(type) {
	case float64:
		return numericScore(g)
	case int:
		return numericScore(float64(g))
	case json.Number:
		f, err := g.Float64()
		if err != nil {
			return 1
		}
		return numericScore(f)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(g), 64); err == nil {
			return numericScore(f)
		}
		return textualScore(g)
	default:
		return 1
	}
}

func numericScore(f float64) int {
	switch {
	case f >= 3:
		return 3
	case f >= 2:
		return 2
	default:
		return 1
	}
}

func textualScore(s string) int {
	g := strings.ToLower(s)
	tokens := strings.FieldsFunc(g, func(r rune) bool { return !unicode.IsLetter(r) })

	if containsAny(g, goodVocabulary) || hasToken(tokens, "a") {
		return 3
	}
	if containsAny(g, mixedVocabulary) || hasToken(tokens, "b") {
		return 2
	}
	return 1
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func hasToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

// gradeForScore is used when the model reports a grade that is not text.
func gradeForScore(score int) model.Grade {
	switch score {
	case 3:
		return model.GradeGood
	case 2:
		return model.GradeMixed
	default:
		return model.GradeBad
	}
}

// normalizeReview builds a CommitReview from an untrusted model object.
func normalizeReview(raw map[string]any, key model.CommitKey, modelName string, now time.Time) model.CommitReview {
	scoreSource := raw["score"]
	if scoreSource == nil {
		scoreSource = raw["grade"]
	}
	score := toScore3(scoreSource)

	grade := model.GradeMixed
	switch g := raw["grade"].(type) {
	case nil:
	case string:
		if trimmed := strings.ToLower(strings.TrimSpace(g)); trimmed != "" {
			grade = model.Grade(trimmed)
		}
	default:
		grade = gradeForScore(score)
	}

	return model.CommitReview{
		RepoID:      key.RepoID,
		SHA:         key.SHA,
		Grade:       grade,
		Score:       score,
		Summary:     truncateRunes(stringValue(raw["summary"]), maxSummaryRunes),
		Risks:       stringList(raw["risks"], maxReviewItems),
		Suggestions: stringList(raw["suggestions"], maxReviewItems),
		CreatedAt:   now.UTC(),
		Model:       modelName,
	}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

// stringList coerces v to at most limit strings. Anything that is not a JSON
// array becomes an empty list.
func stringList(v any, limit int) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}

	if len(items) > limit {
		items = items[:limit]
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, stringValue(item))
	}
	return out
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
