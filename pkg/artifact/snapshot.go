package artifact

import (
	"sort"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/graph"
)

// Snapshot is an immutable, indexed view over one GraphArtifact. All lookups
// used by the query path are precomputed when the snapshot is created.
type Snapshot struct {
	Artifact *common.GraphArtifact
	Index    *graph.Index

	persons   map[string]int
	titles    map[string]string
	clusterOf map[string]int
	clusters  map[int]int
	vocab     map[string]struct{}
	// symbols lists skills such as "c++" or "node.js" that do not survive
	// tokenization, longest first.
	symbols   []string
}

// NewSnapshot indexes a. Canonical titles are derived with synonyms.
func NewSnapshot(a *common.GraphArtifact, synonyms *graph.TitleSynonyms) *Snapshot {
	s := &Snapshot{
		Artifact:  a,
		Index:     graph.NewIndex(graph.NodesFromPersons(a.Nodes), a.Edges),
		persons:   make(map[string]int, len(a.Nodes)),
		titles:    make(map[string]string, len(a.Nodes)),
		clusterOf: make(map[string]int, len(a.Nodes)),
		clusters:  make(map[int]int, len(a.Clusters)),
		vocab:     map[string]struct{}{},
	}
	for i, p := range a.Nodes {
		s.persons[p.ID] = i
		if t := graph.CanonicalTitle(p.CurrentTitle(), synonyms); t != "" {
			s.titles[p.ID] = t
		}
		for _, sk := range p.Skills {
			if n := common.NormalizeSkill(sk); n != "" {
				s.vocab[n] = struct{}{}
			}
		}
	}
	for sk := range s.vocab {
		if strings.IndexFunc(sk, isSymbol) >= 0 {
			s.symbols = append(s.symbols, sk)
		}
	}
	sort.Slice(s.symbols, func(i, j int) bool {
		if len(s.symbols[i]) != len(s.symbols[j]) {
			return len(s.symbols[i]) > len(s.symbols[j])
		}
		return s.symbols[i] < s.symbols[j]
	})
	for i, c := range a.Clusters {
		s.clusters[c.ID] = i
		for _, m := range c.Members {
			s.clusterOf[m] = c.ID
		}
	}
	return s
}

func (s *Snapshot) ID() string { return s.Artifact.ID }

func (s *Snapshot) Persons() []common.Person { return s.Artifact.Nodes }

func (s *Snapshot) Person(id string) (*common.Person, bool) {
	i, ok := s.persons[id]
	if !ok {
		return nil, false
	}
	return &s.Artifact.Nodes[i], true
}

// Title returns the canonical job title of id or "".
func (s *Snapshot) Title(id string) string { return s.titles[id] }

func (s *Snapshot) Titles() map[string]string { return s.titles }

func (s *Snapshot) ClusterOf(id string) (int, bool) {
	c, ok := s.clusterOf[id]
	return c, ok
}

func (s *Snapshot) Cluster(id int) (*common.Cluster, bool) {
	i, ok := s.clusters[id]
	if !ok {
		return nil, false
	}
	return &s.Artifact.Clusters[i], true
}

func (s *Snapshot) Metrics(id string) common.NodeMetrics {
	return s.Artifact.Metrics[id]
}

// HasSkill reports whether any person lists the normalized skill.
func (s *Snapshot) HasSkill(skill string) bool {
	_, ok := s.vocab[skill]
	return ok
}

func (s *Snapshot) VocabularySize() int { return len(s.vocab) }

// SymbolSkills returns the vocabulary entries containing characters other
// than letters, digits and spaces, longest first.
func (s *Snapshot) SymbolSkills() []string { return s.symbols }

func isSymbol(r rune) bool {
	return r != ' ' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// ClusterSummary describes one cluster for the summary endpoint.
type ClusterSummary struct {
	Community int      `json:"community"`
	Size      int      `json:"size"`
	JobTitle  *string  `json:"jobTitle"`
	TopSkills []string `json:"topSkills"`
	TopTitles []string `json:"topTitles"`
}

// Summaries returns every cluster with its topN most frequent skills and
// canonical titles, ordered like the artifact's clusters.
func (s *Snapshot) Summaries(topN int) []ClusterSummary {
	out := make([]ClusterSummary, 0, len(s.Artifact.Clusters))
	for _, c := range s.Artifact.Clusters {
		skills := map[string]int{}
		titles := map[string]int{}
		for _, m := range c.Members {
			p, ok := s.Person(m)
			if !ok {
				continue
			}
			for _, sk := range p.Skills {
				skills[sk]++
			}
			if t := s.titles[m]; t != "" {
				titles[t]++
			}
		}
		out = append(out, ClusterSummary{
			Community: c.ID,
			Size:      len(c.Members),
			JobTitle:  c.JobTitleLabel,
			TopSkills: topCounts(skills, topN),
			TopTitles: topCounts(titles, topN),
		})
	}
	return out
}

func topCounts(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return strings.Compare(keys[i], keys[j]) < 0
	})
	if n > 0 && len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// Holder publishes the current snapshot. Readers never block and always see
// either the old or the new snapshot as a whole.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// Load returns the current snapshot or nil when none was published.
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Swap publishes s and returns the previous snapshot.
func (h *Holder) Swap(s *Snapshot) *Snapshot {
	return h.current.Swap(s)
}
