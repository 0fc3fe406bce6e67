package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSkills(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil", in: nil, want: nil},
		{name: "trims and folds", in: []string{"  Go ", "go", "Machine  Learning"}, want: []string{"go", "machine learning"}},
		{name: "drops empty", in: []string{"", "  ", "SQL"}, want: []string{"sql"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSkills(tt.in))
		})
	}
}

func TestDescriptionHashStable(t *testing.T) {
	a := DescriptionHash("Backend engineer")
	b := DescriptionHash("  Backend engineer\n")
	c := DescriptionHash("Frontend engineer")

	require.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestPersonCompaniesAndTitle(t *testing.T) {
	p := Person{
		ID:      "p1",
		Company: "Acme",
		JobHistory: []JobEntry{
			{Title: "Engineer", Company: "acme"},
			{Title: "Intern", Company: "Initech"},
		},
	}

	assert.Equal(t, []string{"acme", "initech"}, p.Companies())
	assert.Equal(t, "Engineer", p.CurrentTitle())

	p.Title = "Staff Engineer"
	assert.Equal(t, "Staff Engineer", p.CurrentTitle())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"MIT", "Stanford", "ETH"}, SplitList(" MIT, Stanford;ETH ,, "))
	assert.Empty(t, SplitList(""))
}
