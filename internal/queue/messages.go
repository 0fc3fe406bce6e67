package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bridgewise/backend/internal/config"
	"github.com/bridgewise/backend/pkg/rank"
)

// RecomputeMsg asks the worker to rebuild the graph artifact. Goal, when
// set, runs a ranking pass over the new artifact. Params adjust the graph
// build and clustering of this run only.
type RecomputeMsg struct {
	Message       string            `json:"message"`
	CorrelationID string            `json:"correlation_id"`
	RequestedBy   string            `json:"requested_by,omitempty"`
	Goal          *GoalParams       `json:"goal,omitempty"`
	Params        *config.Overrides `json:"params,omitempty"`
}

// GoalParams mirrors rank.GoalRequest on the wire.
type GoalParams struct {
	Text      string        `json:"text,omitempty"`
	Title     string        `json:"title,omitempty"`
	Skills    []string      `json:"skills,omitempty"`
	TopK      int           `json:"top_k"`
	Weights   *rank.Weights `json:"weights,omitempty"`
	WriteBack bool          `json:"write_back"`
}

// Request converts the wire form into a goal ranking request.
func (g *GoalParams) Request() rank.GoalRequest {
	req := rank.GoalRequest{
		QueryText:   g.Text,
		QuerySkills: g.Skills,
		TopK:        g.TopK,
		Weights:     g.Weights,
		WriteBack:   g.WriteBack,
	}
	if t := strings.TrimSpace(g.Title); t != "" {
		req.QueryTitle = &t
	}
	return req
}

// ParseRecomputeMsg decodes a message body. An empty body is a plain
// recompute request.
func ParseRecomputeMsg(body []byte) (RecomputeMsg, error) {
	var msg RecomputeMsg
	if len(strings.TrimSpace(string(body))) == 0 {
		return msg, nil
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("invalid recompute message: %w", err)
	}
	return msg, nil
}
