package graph

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	titleTokenSplit = regexp.MustCompile(`[ \t/+&-]+`)
	titleClean      = regexp.MustCompile(`[^a-z0-9\s]`)
)

// TitleSynonyms overrides the built-in title rules. Exact entries map a
// lowercased raw title to its canonical category; Contains rules match a
// substring and are tried in order after Exact.
type TitleSynonyms struct {
	Exact    map[string]string
	Contains []SynonymRule
}

// SynonymRule maps every title containing Contains to Canon.
type SynonymRule struct {
	Contains string `yaml:"contains" json:"contains"`
	Canon    string `yaml:"canon" json:"canon"`
}

// LoadTitleSynonyms reads a synonym table from a YAML or JSON file.
func LoadTitleSynonyms(path string) (*TitleSynonyms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read title synonyms: %w", err)
	}
	return ParseTitleSynonyms(data)
}

// ParseTitleSynonyms accepts either a flat mapping of raw title to canonical
// title, or a list of {contains, canon} rules. JSON input works as well since
// it is valid YAML.
func ParseTitleSynonyms(data []byte) (*TitleSynonyms, error) {
	out := &TitleSynonyms{Exact: map[string]string{}}

	raw := map[string]string{}
	if err := yaml.Unmarshal(data, &raw); err == nil {
		for k, v := range raw {
			key := NormalizeTitle(k)
			val := strings.TrimSpace(v)
			if key == "" || val == "" {
				continue
			}
			out.Exact[key] = val
		}
		return out, nil
	}

	var rules []SynonymRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse title synonyms: %w", err)
	}
	for _, r := range rules {
		c := NormalizeTitle(r.Contains)
		canon := strings.TrimSpace(r.Canon)
		if c == "" || canon == "" {
			continue
		}
		out.Contains = append(out.Contains, SynonymRule{Contains: c, Canon: canon})
	}
	return out, nil
}

func (s *TitleSynonyms) lookup(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	if canon, ok := s.Exact[key]; ok {
		return canon, true
	}
	for _, r := range s.Contains {
		if strings.Contains(key, r.Contains) {
			return r.Canon, true
		}
	}
	return "", false
}

// NormalizeTitle lowercases a title and collapses whitespace.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// TokenizeTitle splits a title or canonical category into lowercase tokens.
// Single-word CamelCase categories such as "SoftwareEngineer" are split on
// case changes; free-text titles are not.
func TokenizeTitle(title string) []string {
	if strings.TrimSpace(title) == "" {
		return nil
	}
	if !strings.ContainsAny(strings.TrimSpace(title), " \t") {
		title = splitCamel(title)
	}
	parts := titleTokenSplit.Split(strings.ToLower(title), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(titleClean.ReplaceAllString(p, ""))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitCamel(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	prevLower := false
	for _, r := range s {
		isUpper := r >= 'A' && r <= 'Z'
		if isUpper && prevLower {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prevLower = (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
	}
	return b.String()
}

// CanonicalTitle maps a raw title to its canonical category. The synonym
// table is consulted first, then the rule set. An empty title yields "".
func CanonicalTitle(title string, synonyms *TitleSynonyms) string {
	key := NormalizeTitle(title)
	if key == "" {
		return ""
	}
	if canon, ok := synonyms.lookup(key); ok {
		return canon
	}
	return camelCategory(categorizeTitle(key))
}

type titleRule struct {
	category string
	keywords []string
}

var internKeywords = []string{"intern", "trainee", "co-op", "co op"}

var mlKeywords = []string{
	"ml ", " ml", "machine learning", "ai/", "ai ", " ai", "artificial intelligence",
	"applied scientist", "research scientist", "data and applied scientist",
}

// rules ahead of the machine learning branch
var leadingTitleRules = []titleRule{
	{"founder/ceo", []string{"co-founder", "cofounder", "founder", "ceo", "chief executive officer"}},
	{"executive", []string{"chief technology officer", "cto", "chief operating officer", "svp", "vice president"}},
	{"recruiting/hr", []string{"recruit", "talent acquisition", "technical recruiter", "recruiter", "hrbp", "human resources", "hr ", " hr", "people"}},
	{"product", []string{"product"}},
	{"design", []string{"design"}},
}

var trailingTitleRules = []titleRule{
	{"data scientist", []string{"data scientist"}},
	{"data engineer", []string{"data engineer", "big data engineer", "cloud data engineer"}},
	{"analyst", []string{"analyst"}},
	{"devops/sre", []string{"devops", "site reliability engineer", "sre"}},
	{"software engineer", []string{
		"software engineer", "sde", "developer", "programmer", "member of technical staff", "mots", "mts",
		"full stack", "frontend", "backend", "solutions engineer", "software development engineer",
	}},
	{"cloud engineer", []string{"cloud engineer", "cloud support engineer"}},
	{"security", []string{"security"}},
	{"architect", []string{"architect"}},
	{"qa", []string{"quality", "qa "}},
	{"consultant/advisor", []string{"consultant", "advisor"}},
	{"management", []string{"manager", "lead ", "lead,", "lead-", "lead/"}},
	{"sales/marketing", []string{"marketing", "sales", "business development", "account executive", "public relations"}},
	{"academic", []string{"professor", "lecturer", "teaching assistant", "graduate", "adjunct", "faculty"}},
	{"research", []string{"research"}},
	{"engineer", []string{"engineer"}},
	{"intern", internKeywords},
	{"support", []string{"customer", "support", "assistant"}},
	{"network engineer", []string{"network"}},
	{"supply chain", []string{"supply chain"}},
	{"finance/quant", []string{"quantitative", "investment banking", "finance", "financial"}},
	{"content/writing", []string{"writer", "content creator", "writing"}},
	{"operations", []string{"operations", "admin", "administrator"}},
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func categorizeTitle(base string) string {
	if base == "student" || base == "unemployed" {
		return base
	}
	for _, r := range leadingTitleRules {
		if containsAny(base, r.keywords) {
			return r.category
		}
	}
	if containsAny(base, mlKeywords) {
		switch {
		case strings.Contains(base, "data scientist"):
			if containsAny(base, []string{"ml", "machine learning", "ai"}) {
				return "ml engineer"
			}
			return "data scientist"
		case containsAny(base, internKeywords):
			return "intern"
		default:
			return "ml engineer"
		}
	}
	for _, r := range trailingTitleRules {
		if containsAny(base, r.keywords) {
			return r.category
		}
	}
	if base == "hr" {
		return "recruiting/hr"
	}
	return "other"
}

// camelCategory turns "ml engineer" into "MlEngineer" and "founder/ceo"
// into "Founder/Ceo".
func camelCategory(cat string) string {
	if cat == "student" || cat == "unemployed" {
		return cat
	}
	parts := strings.Split(cat, "/")
	for i, p := range parts {
		words := strings.Fields(p)
		for j, w := range words {
			words[j] = strings.ToUpper(w[:1]) + w[1:]
		}
		parts[i] = strings.Join(words, "")
	}
	return strings.Join(parts, "/")
}
