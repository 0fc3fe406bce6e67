package routes

import (
	"net/http"

	"github.com/bridgewise/backend/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// GetIntroPathHandler finds the shortest introduction chain between two
// persons.
func GetIntroPathHandler(c echo.Context) error {
	type introPathResponse struct {
		Path []string `json:"path"`
		Hops *int     `json:"hops"`
	}

	src, dst := c.QueryParam("src"), c.QueryParam("dst")
	if src == "" || dst == "" {
		return badRequest(c, "src and dst are required")
	}
	depth, ok := queryInt(c, "max_depth", 4, 10)
	if !ok {
		return badRequest(c, "max_depth must be within [1,10]")
	}

	ranker := c.(*middleware.AppContext).App.Ranker
	path, err := ranker.IntroPath(c.Request().Context(), src, dst, depth)
	if err != nil {
		return rankError(c, err)
	}

	res := introPathResponse{Path: []string{}}
	if path != nil {
		hops := len(path) - 1
		res.Path = path
		res.Hops = &hops
	}
	return c.JSON(http.StatusOK, res)
}
