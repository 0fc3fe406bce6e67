package neo4j

import (
	"testing"
	"time"

	"github.com/bridgewise/backend/pkg/store"

	"github.com/stretchr/testify/assert"
)

func TestPersonFromValues(t *testing.T) {
	p := personFromValues(map[string]any{
		"id":          "p1",
		"name":        "Ada",
		"title":       nil,
		"company":     "Acme",
		"skills":      []any{"Go", " go ", "SQL", nil},
		"schools":     "MIT, Stanford",
		"description": "builds things",
	})
	assert.Equal(t, "p1", p.ID)
	assert.Empty(t, p.Title)
	assert.Equal(t, []string{"go", "sql"}, p.Skills)
	assert.Equal(t, []string{"MIT", "Stanford"}, p.Schools)
	assert.Equal(t, "builds things", p.DescriptionText)
}

func TestStringValue(t *testing.T) {
	assert.Equal(t, "42", stringValue(int64(42)))
	assert.Equal(t, "", stringValue(nil))
}

func TestRankRows(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	rows := rankRows([]store.RankRecord{{PersonID: "a", Goal: "ml", Score: 0.5, Struct: 0.25, At: at}})
	assert.Equal(t, []map[string]any{{
		"id": "a", "goal": "ml", "score": 0.5, "vecSim": 0.0, "skillSim": 0.0,
		"jobSim": 0.0, "struct": 0.25, "at": "2026-02-03T04:05:06Z",
	}}, rows)
}
