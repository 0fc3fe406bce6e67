package routes

import (
	"net/http"

	"github.com/bridgewise/backend/pkg/common"

	"github.com/labstack/echo/v4"
)

// GetPersonHandler returns one person with its community and metrics.
func GetPersonHandler(c echo.Context) error {
	type personResponse struct {
		ID              string             `json:"id"`
		Name            string             `json:"name"`
		Title           string             `json:"title"`
		Company         string             `json:"company"`
		Skills          []string           `json:"skills"`
		Community       *int               `json:"community"`
		BridgePotential float64            `json:"bridgePotential"`
		Metrics         common.NodeMetrics `json:"metrics"`
	}

	snap, err := snapshot(c)
	if err != nil {
		return rankError(c, err)
	}
	p, ok := snap.Person(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Person not found"})
	}

	res := personResponse{
		ID:              p.ID,
		Name:            p.Name,
		Title:           p.Title,
		Company:         p.Company,
		Skills:          p.Skills,
		BridgePotential: snap.Metrics(p.ID).BridgePotential,
		Metrics:         snap.Metrics(p.ID),
	}
	if cid, ok := snap.ClusterOf(p.ID); ok {
		res.Community = &cid
	}
	return c.JSON(http.StatusOK, res)
}
