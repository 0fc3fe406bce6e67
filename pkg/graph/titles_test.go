package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalTitleRules(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Co-Founder & CEO", "Founder/Ceo"},
		{"Vice President of Engineering", "Executive"},
		{"Technical Recruiter", "Recruiting/Hr"},
		{"Senior Product Manager", "Product"},
		{"UX Designer", "Design"},
		{"Machine Learning Engineer", "MlEngineer"},
		{"Data Scientist", "DataScientist"},
		{"Big Data Engineer", "DataEngineer"},
		{"Business Analyst", "Analyst"},
		{"Site Reliability Engineer", "Devops/Sre"},
		{"Full Stack Developer", "SoftwareEngineer"},
		{"Security Specialist", "Security"},
		{"Solutions Architect", "Architect"},
		{"Professor", "Academic"},
		{"Mechanical Engineer", "Engineer"},
		{"Student", "student"},
		{"Gardener", "Other"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalTitle(tt.title, nil))
		})
	}
}

func TestTokenizeTitle(t *testing.T) {
	assert.Equal(t, []string{"senior", "back", "end", "engineer"}, TokenizeTitle("Senior Back-End Engineer"))
	assert.Equal(t, []string{"software", "engineer"}, TokenizeTitle("SoftwareEngineer"))
	assert.Equal(t, []string{"founder", "ceo"}, TokenizeTitle("Founder/Ceo"))
	assert.Equal(t, []string{"r", "d", "lead"}, TokenizeTitle("R&D Lead"))
	assert.Nil(t, TokenizeTitle("   "))
}

func TestParseTitleSynonymsMapping(t *testing.T) {
	syn, err := ParseTitleSynonyms([]byte("SWE: SoftwareEngineer\n\"Head of People\": Recruiting/Hr\n"))
	require.NoError(t, err)

	assert.Equal(t, "SoftwareEngineer", CanonicalTitle("swe", syn))
	assert.Equal(t, "Recruiting/Hr", CanonicalTitle("Head  of People", syn))
	assert.Equal(t, "Analyst", CanonicalTitle("Financial Analyst", syn), "falls back to rules")
}

func TestLoadTitleSynonymsRuleList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.json")
	data := `[{"contains": "growth", "canon": "Sales/Marketing"}, {"contains": "", "canon": "Ignored"}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	syn, err := LoadTitleSynonyms(path)
	require.NoError(t, err)
	require.Len(t, syn.Contains, 1)
	assert.Equal(t, "Sales/Marketing", CanonicalTitle("Head of Growth", syn))
}

func TestParseTitleSynonymsInvalid(t *testing.T) {
	_, err := ParseTitleSynonyms([]byte("- [unclosed"))
	assert.Error(t, err)
}
