package graph

// Distances returns the hop distance from src to every node reachable within
// maxDepth hops. maxDepth <= 0 means unbounded. Unreachable nodes are absent.
func Distances(x *Index, src, maxDepth int) map[int]int {
	dist := map[int]int{src: 0}
	frontier := []int{src}
	for depth := 1; len(frontier) > 0; depth++ {
		if maxDepth > 0 && depth > maxDepth {
			break
		}
		var next []int
		for _, v := range frontier {
			for _, nb := range x.Neighbors(v) {
				if _, ok := dist[nb.Node]; ok {
					continue
				}
				dist[nb.Node] = depth
				next = append(next, nb.Node)
			}
		}
		frontier = next
	}
	return dist
}

// ShortestPath returns the node positions of an unweighted shortest path from
// src to dst, both included, or nil when dst is not reachable within maxDepth
// hops. Neighbours are expanded in ascending order so the path is stable.
func ShortestPath(x *Index, src, dst, maxDepth int) []int {
	if src == dst {
		return []int{src}
	}
	parent := map[int]int{src: -1}
	frontier := []int{src}
	for depth := 1; len(frontier) > 0; depth++ {
		if maxDepth > 0 && depth > maxDepth {
			return nil
		}
		var next []int
		for _, v := range frontier {
			for _, nb := range x.Neighbors(v) {
				if _, ok := parent[nb.Node]; ok {
					continue
				}
				parent[nb.Node] = v
				if nb.Node == dst {
					return unwind(parent, dst)
				}
				next = append(next, nb.Node)
			}
		}
		frontier = next
	}
	return nil
}

func unwind(parent map[int]int, dst int) []int {
	var path []int
	for v := dst; v != -1; v = parent[v] {
		path = append(path, v)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
