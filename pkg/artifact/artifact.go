package artifact

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/bridgewise/backend/pkg/common"
)

// ErrNotFound is returned when no artifact has been published yet.
var ErrNotFound = errors.New("artifact not found")

const latestKey = "latest"

// Store persists graph artifacts. Save must be atomic with respect to
// LoadLatest: a reader sees either the previous artifact or the new one,
// never a partially written file.
type Store interface {
	Save(ctx context.Context, a *common.GraphArtifact) error
	LoadLatest(ctx context.Context) (*common.GraphArtifact, error)
	Load(ctx context.Context, id string) (*common.GraphArtifact, error)
}

// Encode writes a as gzip compressed JSON.
func Encode(w io.Writer, a *common.GraphArtifact) error {
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(a); err != nil {
		_ = zw.Close()
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	return zw.Close()
}

// Decode reads an artifact written by Encode.
func Decode(r io.Reader) (*common.GraphArtifact, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer zr.Close()

	var a common.GraphArtifact
	if err := json.NewDecoder(zr).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	return &a, nil
}

func objectName(id string) string {
	return id + ".json.gz"
}

func paramsName(id string) string {
	return id + ".params.json"
}

// validID rejects ids that would escape the store's directory or prefix.
func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id != path.Clean(id) || id == "." || id == ".." {
		return fmt.Errorf("invalid artifact id %q", id)
	}
	return nil
}

// Metadata summarises an artifact without its nodes and edges.
type Metadata struct {
	ID         string         `json:"id"`
	BuiltAt    string         `json:"builtAt"`
	NodeCount  int            `json:"nodeCount"`
	EdgeCount  int            `json:"edgeCount"`
	Clusters   int            `json:"clusterCount"`
	Modularity float64        `json:"modularity"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func MetadataOf(a *common.GraphArtifact) Metadata {
	return Metadata{
		ID:         a.ID,
		BuiltAt:    a.BuiltAt.UTC().Format(time.RFC3339),
		NodeCount:  len(a.Nodes),
		EdgeCount:  len(a.Edges),
		Clusters:   len(a.Clusters),
		Modularity: a.Modularity,
		Parameters: a.Parameters,
	}
}
