package common

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"time"
)

// Person represents a single contact in the social graph. Persons are loaded
// in bulk from a contact store and are the nodes of every graph artifact.
//
// A person carries:
//   - Skills: a normalized, deduplicated set (trimmed and case-folded)
//   - JobHistory: past and current positions, newest first when known
//   - DescriptionText: free text used to compute the semantic embedding
//
// Embedding is computed lazily and cached keyed by a hash of
// DescriptionText, see DescriptionHash.
type Person struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Title           string         `json:"title"`
	Company         string         `json:"company"`
	Skills          []string       `json:"skills"`
	JobHistory      []JobEntry     `json:"jobHistory,omitempty"`
	Schools         []string       `json:"schools,omitempty"`
	DescriptionText string         `json:"description,omitempty"`
	Raw             map[string]any `json:"raw,omitempty"`
	Embedding       []float32      `json:"embedding,omitempty"`
}

// JobEntry is one position in a person's job history.
type JobEntry struct {
	Title   string     `json:"title"`
	Company string     `json:"company"`
	Start   *time.Time `json:"start,omitempty"`
	End     *time.Time `json:"end,omitempty"`
}

// Edge is an undirected weighted link between two persons. Edges are stored
// canonically with Source < Target and never form self loops.
type Edge struct {
	Source       string   `json:"source"`
	Target       string   `json:"target"`
	Weight       float64  `json:"weight"`
	SharedSkills []string `json:"sharedSkills,omitempty"`
}

// Cluster is one community of a partition. Every person belongs to exactly
// one cluster, singletons included. JobTitleLabel is nil when no title
// dominates the members.
type Cluster struct {
	ID            int      `json:"id"`
	Members       []string `json:"members"`
	JobTitleLabel *string  `json:"jobTitle"`
}

// NodeMetrics holds the structural signals precomputed for a person.
type NodeMetrics struct {
	Degree          int     `json:"degree"`
	WeightedDegree  float64 `json:"weightedDegree"`
	Betweenness     float64 `json:"betweenness"`
	BridgeCoeff     float64 `json:"bridgeCoeff"`
	BridgePotential float64 `json:"bridgePotential"`
	StructGlobal    float64 `json:"structGlobal"`
}

// GraphArtifact is the persisted output of a precomputation run. It is
// immutable once written; a new run produces a new artifact which replaces
// the current one atomically.
type GraphArtifact struct {
	ID         string                 `json:"id"`
	BuiltAt    time.Time              `json:"builtAt"`
	Nodes      []Person               `json:"nodes"`
	Edges      []Edge                 `json:"edges"`
	Clusters   []Cluster              `json:"clusters"`
	Modularity float64                `json:"modularity"`
	Metrics    map[string]NodeMetrics `json:"metrics"`
	Parameters map[string]any         `json:"parameters,omitempty"`
}

// NormalizeSkill trims and case-folds a single skill.
func NormalizeSkill(skill string) string {
	return strings.ToLower(strings.Join(strings.Fields(skill), " "))
}

// NormalizeSkills returns the sorted, deduplicated, normalized set of skills.
// Empty entries are dropped.
func NormalizeSkills(skills []string) []string {
	if len(skills) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		n := NormalizeSkill(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// DescriptionHash returns the cache key for a description text.
func DescriptionHash(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// Companies returns the normalized set of companies a person has worked at,
// current company included.
func (p Person) Companies() []string {
	out := make([]string, 0, len(p.JobHistory)+1)
	if c := NormalizeSkill(p.Company); c != "" {
		out = append(out, c)
	}
	for _, j := range p.JobHistory {
		if c := NormalizeSkill(j.Company); c != "" {
			out = append(out, c)
		}
	}
	return NormalizeSkills(out)
}

// CurrentTitle returns the person's title, falling back to the first job
// history entry that has one.
func (p Person) CurrentTitle() string {
	if t := strings.TrimSpace(p.Title); t != "" {
		return t
	}
	for _, j := range p.JobHistory {
		if t := strings.TrimSpace(j.Title); t != "" {
			return t
		}
	}
	return ""
}

// SplitList splits a comma or semicolon separated string into trimmed,
// non-empty parts.
func SplitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
