package rank

import (
	"regexp"
	"sort"
	"strings"

	"github.com/bridgewise/backend/pkg/artifact"
	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/graph"
)

var (
	queryStrip = regexp.MustCompile(`[^a-z0-9\s/+&-]`)
	querySplit = regexp.MustCompile(`[\s/+&-]+`)
)

var roleTerms = map[string]struct{}{
	"engineer": {}, "engineers": {}, "developer": {}, "developers": {},
	"manager": {}, "managers": {}, "analyst": {}, "analysts": {},
	"designer": {}, "designers": {}, "scientist": {}, "scientists": {},
	"architect": {}, "architects": {}, "software": {}, "backend": {},
	"front": {}, "frontend": {}, "fullstack": {}, "full-stack": {},
	"data": {}, "ml": {}, "ai": {}, "qa": {}, "sre": {}, "devops": {},
	"security": {}, "mobile": {}, "ios": {}, "android": {},
}

// ParsedQuery is the structured interpretation of a ranking request.
type ParsedQuery struct {
	Skills     []string `json:"goalSkills"`
	JobTokens  []string `json:"goalJobTokens"`
	TitleCanon string   `json:"titleCanon,omitempty"`
}

// Empty reports whether the query carries no skill or title signal.
func (q ParsedQuery) Empty() bool {
	return len(q.Skills) == 0 && len(q.JobTokens) == 0 && q.TitleCanon == ""
}

// Tokenize lowercases text, drops punctuation and splits on whitespace and
// the separators / + & -.
func Tokenize(text string) []string {
	t := queryStrip.ReplaceAllString(strings.ToLower(text), " ")
	t = strings.TrimSpace(t)
	if t == "" {
		return nil
	}
	var out []string
	for _, p := range querySplit.Split(t, -1) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseQuery extracts goal skills and job tokens. Explicit skills and title
// take precedence over what is found in the free text.
func ParseQuery(snap *artifact.Snapshot, synonyms *graph.TitleSynonyms, text string, title *string, skills []string) ParsedQuery {
	var q ParsedQuery
	symbolic, rest := matchSymbolSkills(snap, strings.ToLower(text))
	tokens := Tokenize(rest)

	if len(skills) > 0 {
		q.Skills = common.NormalizeSkills(skills)
	} else {
		q.Skills = uniqueSorted(append(symbolic, extractSkills(snap, tokens)...))
	}

	if title != nil && strings.TrimSpace(*title) != "" {
		q.TitleCanon = graph.CanonicalTitle(*title, synonyms)
		q.JobTokens = uniqueSorted(graph.TokenizeTitle(*title))
	} else {
		var job []string
		for _, t := range tokens {
			if _, ok := roleTerms[t]; ok || strings.HasSuffix(t, "engineer") {
				job = append(job, t)
			}
		}
		q.JobTokens = uniqueSorted(job)
	}
	return q
}

// matchSymbolSkills finds vocabulary entries like "c++" or "node.js" in the
// lowercased text before punctuation is stripped. Matches must not be glued
// to a letter or digit and are blanked out of the returned text, so "c++"
// does not also yield "c".
func matchSymbolSkills(snap *artifact.Snapshot, text string) ([]string, string) {
	if snap == nil || text == "" {
		return nil, text
	}
	var found []string
	for _, sk := range snap.SymbolSkills() {
		from := 0
		for {
			i := strings.Index(text[from:], sk)
			if i < 0 {
				break
			}
			start, end := from+i, from+i+len(sk)
			if wordBoundary(text, start, end) {
				found = append(found, sk)
				text = text[:start] + strings.Repeat(" ", len(sk)) + text[end:]
			}
			from = end
		}
	}
	return found, text
}

func wordBoundary(text string, start, end int) bool {
	if start > 0 && isWordByte(text[start-1]) {
		return false
	}
	return end >= len(text) || !isWordByte(text[end])
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// extractSkills matches single tokens and adjacent token pairs against the
// artifact's skill vocabulary.
func extractSkills(snap *artifact.Snapshot, tokens []string) []string {
	if snap == nil {
		return nil
	}
	var found []string
	for i, t := range tokens {
		if snap.HasSkill(t) {
			found = append(found, t)
		}
		if i+1 < len(tokens) {
			if bigram := t + " " + tokens[i+1]; snap.HasSkill(bigram) {
				found = append(found, bigram)
			}
		}
	}
	return uniqueSorted(found)
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
