package pgx

import (
	"context"
	"fmt"

	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/logger"
)

const loadPersonsSQL = `
SELECT id, name, title, company, skills, schools, job_history, description, COALESCE(raw, '{}'::jsonb)
FROM people
ORDER BY id;
`

// LoadPersons reads every row of the people table. Skills are normalized.
func (s *Store) LoadPersons(ctx context.Context) ([]common.Person, error) {
	rows, err := s.conn.Query(ctx, loadPersonsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query people: %w", err)
	}
	defer rows.Close()

	var persons []common.Person
	for rows.Next() {
		var p common.Person
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Title,
			&p.Company,
			&p.Skills,
			&p.Schools,
			&p.JobHistory,
			&p.DescriptionText,
			&p.Raw,
		); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		p.Skills = common.NormalizeSkills(p.Skills)
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.Debug("[Store][LoadPersons] Loaded people", "count", len(persons))
	return persons, nil
}
