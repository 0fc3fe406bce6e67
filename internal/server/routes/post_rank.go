package routes

import (
	"net/http"
	"strconv"

	"github.com/bridgewise/backend/internal/server/middleware"
	"github.com/bridgewise/backend/pkg/rank"

	"github.com/labstack/echo/v4"
)

// RankHandler ranks every person of the graph against a free text goal
// without a requester and groups the hits by cluster.
func RankHandler(c echo.Context) error {
	type goalBody struct {
		Query       string   `json:"query"`
		TopK        int      `json:"top_k" validate:"gte=0"`
		QueryTitle  *string  `json:"query_title"`
		QuerySkills []string `json:"query_skills"`
		Exclude     []string `json:"exclude"`
	}

	type person struct {
		rank.Result
		Community       *int    `json:"community"`
		BridgePotential float64 `json:"bridgePotential"`
	}

	type goalResponse struct {
		ArtifactID  string              `json:"artifactId"`
		People      []person            `json:"people"`
		Communities map[string][]person `json:"communities"`
	}

	data := new(goalBody)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if data.Query == "" && data.QueryTitle == nil && len(data.QuerySkills) == 0 {
		return badRequest(c, "query is required")
	}
	topK := data.TopK
	if topK == 0 {
		topK = defaultTopK
	}

	snap, err := snapshot(c)
	if err != nil {
		return rankError(c, err)
	}
	res, err := c.(*middleware.AppContext).App.Ranker.RankGoal(c.Request().Context(), rank.GoalRequest{
		QueryText:   data.Query,
		QueryTitle:  data.QueryTitle,
		QuerySkills: data.QuerySkills,
		TopK:        topK,
		Exclude:     data.Exclude,
	})
	if err != nil {
		return rankError(c, err)
	}

	out := goalResponse{
		ArtifactID:  res.ArtifactID,
		People:      make([]person, 0, len(res.Results)),
		Communities: map[string][]person{},
	}
	for _, r := range res.Results {
		p := person{Result: r, BridgePotential: snap.Metrics(r.ID).BridgePotential}
		key := "none"
		if cid, ok := snap.ClusterOf(r.ID); ok {
			p.Community = &cid
			key = strconv.Itoa(cid)
		}
		out.People = append(out.People, p)
		out.Communities[key] = append(out.Communities[key], p)
	}
	return c.JSON(http.StatusOK, out)
}
