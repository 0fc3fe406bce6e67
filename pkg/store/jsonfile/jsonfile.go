package jsonfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/logger"
	"github.com/bridgewise/backend/pkg/store"
)

// Store loads contacts from a JSON export. The file holds either a JSON array
// of contacts or one contact object per line.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// list accepts a JSON array of strings or a comma separated string.
type list []string

func (l *list) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = common.SplitList(s)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*l = arr
	return nil
}

type contact struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Title       string            `json:"title"`
	Company     string            `json:"company"`
	Skills      list              `json:"skills"`
	Schools     list              `json:"schools"`
	JobHistory  []common.JobEntry `json:"jobHistory"`
	Description string            `json:"description"`
	Embedding   []float32         `json:"embedding"`
	Raw         map[string]any    `json:"raw"`
}

func (s *Store) LoadPersons(ctx context.Context) ([]common.Person, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contacts: %w", err)
	}
	contacts, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Debug("[Store][JSON] Loaded persons", "path", s.path, "count", len(contacts))
	return contacts, nil
}

// Parse decodes contacts from a JSON array or JSON lines. Records without an
// id are skipped, later duplicates of an id replace earlier ones.
func Parse(data []byte) ([]common.Person, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raw []contact
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	} else {
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		line := 0
		for sc.Scan() {
			line++
			text := strings.TrimSpace(sc.Text())
			if text == "" {
				continue
			}
			var c contact
			if err := json.Unmarshal([]byte(text), &c); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			raw = append(raw, c)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}

	byID := make(map[string]common.Person, len(raw))
	for _, c := range raw {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			continue
		}
		byID[id] = common.Person{
			ID:              id,
			Name:            strings.TrimSpace(c.Name),
			Title:           strings.TrimSpace(c.Title),
			Company:         strings.TrimSpace(c.Company),
			Skills:          common.NormalizeSkills(c.Skills),
			Schools:         c.Schools,
			JobHistory:      c.JobHistory,
			DescriptionText: strings.TrimSpace(c.Description),
			Embedding:       c.Embedding,
			Raw:             c.Raw,
		}
	}

	out := make([]common.Person, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ store.ContactStore = (*Store)(nil)
