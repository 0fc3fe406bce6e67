package routes

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/bridgewise/backend/internal/server/middleware"
	"github.com/bridgewise/backend/pkg/artifact"
	"github.com/bridgewise/backend/pkg/rank"

	"github.com/labstack/echo/v4"
)

func snapshot(c echo.Context) (*artifact.Snapshot, error) {
	snap := c.(*middleware.AppContext).App.Holder.Load()
	if snap == nil {
		return nil, rank.ErrArtifactMissing
	}
	return snap, nil
}

// queryInt reads an optional positive integer query parameter.
func queryInt(c echo.Context, name string, def, maxValue int) (int, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 || v > maxValue {
		return 0, false
	}
	return v, true
}

// GetClustersHandler lists one entry per cluster, largest first.
func GetClustersHandler(c echo.Context) error {
	type clusterResponse struct {
		JobTitle   *string `json:"jobTitle"`
		TotalCount int     `json:"totalCount"`
	}

	snap, err := snapshot(c)
	if err != nil {
		return rankError(c, err)
	}

	clusters := snap.Artifact.Clusters
	order := make([]int, len(clusters))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := clusters[order[a]], clusters[order[b]]
		if len(ca.Members) != len(cb.Members) {
			return len(ca.Members) > len(cb.Members)
		}
		return ca.ID < cb.ID
	})

	out := make([]clusterResponse, 0, len(clusters))
	for _, i := range order {
		out = append(out, clusterResponse{
			JobTitle:   clusters[i].JobTitleLabel,
			TotalCount: len(clusters[i].Members),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// GetConnectionsHandler lists every community with its label and size.
func GetConnectionsHandler(c echo.Context) error {
	type connectionResponse struct {
		Community int     `json:"community"`
		JobTitle  *string `json:"jobTitle"`
		Size      int     `json:"size"`
	}

	snap, err := snapshot(c)
	if err != nil {
		return rankError(c, err)
	}

	out := make([]connectionResponse, 0, len(snap.Artifact.Clusters))
	for _, cl := range snap.Artifact.Clusters {
		out = append(out, connectionResponse{
			Community: cl.ID,
			JobTitle:  cl.JobTitleLabel,
			Size:      len(cl.Members),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// GetClustersSummaryHandler returns the top skills and titles per cluster.
func GetClustersSummaryHandler(c echo.Context) error {
	topN, ok := queryInt(c, "top_n", 5, 100)
	if !ok {
		return badRequest(c, "top_n must be within [1,100]")
	}
	snap, err := snapshot(c)
	if err != nil {
		return rankError(c, err)
	}
	return c.JSON(http.StatusOK, snap.Summaries(topN))
}

// GetClusterHandler lists the members of one cluster by bridge potential.
func GetClusterHandler(c echo.Context) error {
	type memberResponse struct {
		ID              string  `json:"id"`
		Name            string  `json:"name"`
		Title           string  `json:"title"`
		Company         string  `json:"company"`
		BridgePotential float64 `json:"bridgePotential"`
	}

	type clusterResponse struct {
		Community int              `json:"community"`
		JobTitle  *string          `json:"jobTitle"`
		Size      int              `json:"size"`
		Members   []memberResponse `json:"members"`
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return badRequest(c, "Invalid cluster id")
	}
	limit, ok := queryInt(c, "limit", 100, 10000)
	if !ok {
		return badRequest(c, "limit must be within [1,10000]")
	}
	snap, err := snapshot(c)
	if err != nil {
		return rankError(c, err)
	}
	cl, ok := snap.Cluster(id)
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Cluster not found"})
	}

	members := make([]memberResponse, 0, len(cl.Members))
	for _, m := range cl.Members {
		p, ok := snap.Person(m)
		if !ok {
			continue
		}
		members = append(members, memberResponse{
			ID:              p.ID,
			Name:            p.Name,
			Title:           p.Title,
			Company:         p.Company,
			BridgePotential: snap.Metrics(p.ID).BridgePotential,
		})
	}
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].BridgePotential != members[j].BridgePotential {
			return members[i].BridgePotential > members[j].BridgePotential
		}
		return members[i].ID < members[j].ID
	})
	if len(members) > limit {
		members = members[:limit]
	}

	return c.JSON(http.StatusOK, clusterResponse{
		Community: cl.ID,
		JobTitle:  cl.JobTitleLabel,
		Size:      len(cl.Members),
		Members:   members,
	})
}
