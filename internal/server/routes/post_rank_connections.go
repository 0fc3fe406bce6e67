package routes

import (
	"net/http"

	"github.com/bridgewise/backend/internal/server/middleware"
	"github.com/bridgewise/backend/pkg/rank"

	"github.com/labstack/echo/v4"
)

// RankConnectionsHandler ranks the requester's connections against a goal.
func RankConnectionsHandler(c echo.Context) error {
	type debugResponse struct {
		ArtifactID      string           `json:"artifactId"`
		Query           rank.ParsedQuery `json:"query"`
		CandidateCount  int              `json:"candidateCount"`
		VecSimAvailable bool             `json:"vecSimAvailable"`
		Weights         rank.Weights     `json:"weights"`
	}

	type rankResponse struct {
		Results []rank.Result  `json:"results"`
		Debug   *debugResponse `json:"debug,omitempty"`
	}

	data := new(rankBody)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return badRequest(c, "Invalid request body")
	}

	ranker := c.(*middleware.AppContext).App.Ranker
	res, err := ranker.Rank(c.Request().Context(), data.request())
	if err != nil {
		return rankError(c, err)
	}

	out := rankResponse{Results: res.Results}
	if data.Debug {
		w := ranker.Weights()
		if data.Weights != nil {
			w = *data.Weights
		}
		out.Debug = &debugResponse{
			ArtifactID:      res.ArtifactID,
			Query:           res.Query,
			CandidateCount:  res.CandidateCount,
			VecSimAvailable: res.VecSimAvailable,
			Weights:         w,
		}
	}
	return c.JSON(http.StatusOK, out)
}

// RankGraphHandler returns the ranked subgraph around the requester.
func RankGraphHandler(c echo.Context) error {
	data := new(rankBody)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return badRequest(c, "Invalid request body")
	}

	ranker := c.(*middleware.AppContext).App.Ranker
	view, err := ranker.Subgraph(c.Request().Context(), data.request())
	if err != nil {
		return rankError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// RankExplainHandler shows how a goal is parsed and how many candidates
// match it.
func RankExplainHandler(c echo.Context) error {
	type explainBody struct {
		rankBody
		Sample int `json:"sample" validate:"gte=0,lte=1000"`
	}

	data := new(explainBody)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	sample := data.Sample
	if sample == 0 {
		sample = 20
	}

	ranker := c.(*middleware.AppContext).App.Ranker
	exp, err := ranker.Explain(c.Request().Context(), data.request(), sample)
	if err != nil {
		return rankError(c, err)
	}
	return c.JSON(http.StatusOK, exp)
}

// RankBatchHandler ranks several goals for the same requester.
func RankBatchHandler(c echo.Context) error {
	type batchBody struct {
		rankBody
		Queries []string `json:"queries" validate:"required,min=1,max=50"`
	}

	type batchResponse struct {
		Results []rank.BatchResult `json:"results"`
	}

	data := new(batchBody)
	if err := c.Bind(data); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return badRequest(c, "Invalid request body")
	}

	ranker := c.(*middleware.AppContext).App.Ranker
	res, err := ranker.RankBatch(c.Request().Context(), rank.BatchRequest{
		Request: data.request(),
		Queries: data.Queries,
	})
	if err != nil {
		return rankError(c, err)
	}
	return c.JSON(http.StatusOK, batchResponse{Results: res})
}
