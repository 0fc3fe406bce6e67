package routes

import (
	"github.com/bridgewise/backend/pkg/rank"
)

// rankBody is the request body shared by the rank-connections endpoints.
type rankBody struct {
	MeID        string        `json:"me_id" validate:"required"`
	Query       string        `json:"query"`
	TopK        int           `json:"top_k" validate:"gte=0"`
	QueryTitle  *string       `json:"query_title"`
	QuerySkills []string      `json:"query_skills"`
	Exclude     []string      `json:"exclude"`
	Weights     *rank.Weights `json:"weights"`
	Debug       bool          `json:"debug"`
	Write       bool          `json:"write"`
}

const defaultTopK = 10

func (b *rankBody) request() rank.Request {
	topK := b.TopK
	if topK == 0 {
		topK = defaultTopK
	}
	return rank.Request{
		RequesterID: b.MeID,
		QueryText:   b.Query,
		QueryTitle:  b.QueryTitle,
		QuerySkills: b.QuerySkills,
		TopK:        topK,
		Exclude:     b.Exclude,
		Weights:     b.Weights,
		WriteBack:   b.Write,
	}
}
