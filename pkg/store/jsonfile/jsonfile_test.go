package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArray(t *testing.T) {
	persons, err := Parse([]byte(`[
		{"id": "b", "name": "Bob", "skills": "Go, SQL, go"},
		{"id": "a", "name": "Ada", "skills": ["Python", "ML"], "schools": ["MIT"], "description": " likes graphs "},
		{"name": "no id"}
	]`))
	require.NoError(t, err)
	require.Len(t, persons, 2)
	assert.Equal(t, "a", persons[0].ID)
	assert.Equal(t, []string{"ml", "python"}, persons[0].Skills)
	assert.Equal(t, "likes graphs", persons[0].DescriptionText)
	assert.Equal(t, []string{"go", "sql"}, persons[1].Skills)
}

func TestParseLines(t *testing.T) {
	persons, err := Parse([]byte("{\"id\":\"x\",\"title\":\"Engineer\"}\n\n{\"id\":\"x\",\"title\":\"Manager\"}\n{\"id\":\"y\"}\n"))
	require.NoError(t, err)
	require.Len(t, persons, 2)
	assert.Equal(t, "Manager", persons[0].Title, "later records win")

	_, err = Parse([]byte("{\"id\":\"x\"}\nnot json\n"))
	assert.ErrorContains(t, err, "line 2")

	persons, err = Parse([]byte("   "))
	require.NoError(t, err)
	assert.Empty(t, persons)
}

func TestLoadPersons(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"a","skills":["go"]}]`), 0o644))

	persons, err := NewStore(path).LoadPersons(context.Background())
	require.NoError(t, err)
	require.Len(t, persons, 1)

	_, err = NewStore(filepath.Join(t.TempDir(), "missing.json")).LoadPersons(context.Background())
	assert.Error(t, err)
}
