package neo4j

import (
	"context"
	"fmt"

	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/logger"
	"github.com/bridgewise/backend/pkg/store"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Store reads contacts from a Neo4j database holding (:Person) nodes and
// writes ranking results back as node properties.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewStoreParams defines the connection of a Store.
type NewStoreParams struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewStore connects to Neo4j and verifies the connection.
func NewStore(ctx context.Context, params NewStoreParams) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(params.URI, neo4j.BasicAuth(params.Username, params.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	return &Store{driver: driver, database: params.Database}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

const loadPersonsQuery = `
MATCH (p:Person)
WHERE p.id IS NOT NULL
RETURN p.id AS id, p.name AS name, p.title AS title, p.company AS company,
       p.skills AS skills, p.schools AS schools, p.description AS description
ORDER BY id
`

// LoadPersons reads every Person node. Skills are normalized.
func (s *Store) LoadPersons(ctx context.Context) ([]common.Person, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, loadPersonsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load persons: %w", err)
	}

	var persons []common.Person
	for result.Next(ctx) {
		persons = append(persons, personFromValues(result.Record().AsMap()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read persons: %w", err)
	}

	logger.Debug("[Store][Neo4j] Loaded persons", "count", len(persons))
	return persons, nil
}

const writeRanksQuery = `
UNWIND $rows AS row
MATCH (p:Person {id: row.id})
SET p.rankScore    = row.score,
    p.rankGoal     = row.goal,
    p.rankVecSim   = row.vecSim,
    p.rankSkillSim = row.skillSim,
    p.rankJobSim   = row.jobSim,
    p.rankStruct   = row.struct,
    p.rankAt       = row.at
`

// WriteRanks stores the latest ranking on each Person node. Only the most
// recent goal is kept per person.
func (s *Store) WriteRanks(ctx context.Context, records []store.RankRecord) error {
	if len(records) == 0 {
		return nil
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, writeRanksQuery, map[string]any{"rows": rankRows(records)})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to write ranks: %w", err)
	}
	return nil
}

func rankRows(records []store.RankRecord) []map[string]any {
	rows := make([]map[string]any, len(records))
	for i, r := range records {
		rows[i] = map[string]any{
			"id":       r.PersonID,
			"goal":     r.Goal,
			"score":    r.Score,
			"vecSim":   r.VecSim,
			"skillSim": r.SkillSim,
			"jobSim":   r.JobSim,
			"struct":   r.Struct,
			"at":       r.At.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return rows
}

func personFromValues(v map[string]any) common.Person {
	return common.Person{
		ID:              stringValue(v["id"]),
		Name:            stringValue(v["name"]),
		Title:           stringValue(v["title"]),
		Company:         stringValue(v["company"]),
		Skills:          common.NormalizeSkills(stringList(v["skills"])),
		Schools:         stringList(v["schools"]),
		DescriptionText: stringValue(v["description"]),
	}
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// stringList accepts a list property or a single comma separated string.
func stringList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s := stringValue(x); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	case string:
		return common.SplitList(t)
	}
	return nil
}

var (
	_ store.ContactStore = (*Store)(nil)
	_ store.RankWriter   = (*Store)(nil)
)
