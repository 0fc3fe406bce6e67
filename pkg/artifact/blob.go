package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bridgewise/backend/internal/util"
	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/logger"
)

// BlobClient is the object storage used by BlobStore. Get must return an
// error wrapping ErrNotFound for missing keys.
type BlobClient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
}

// BlobStore keeps artifacts in object storage under prefix. Objects are
// immutable; the latest pointer object is written only after the artifact
// itself was uploaded.
type BlobStore struct {
	client BlobClient
	prefix string
	keep   int
	retry  util.RetryPolicy
}

func NewBlobStore(client BlobClient, prefix string, keep int) *BlobStore {
	return &BlobStore{client: client, prefix: strings.Trim(prefix, "/"), keep: keep, retry: util.DefaultRetry}
}

func (s *BlobStore) put(ctx context.Context, key string, data []byte, contentType string) error {
	return util.RetryErr(ctx, s.retry, func(ctx context.Context) error {
		return s.client.Put(ctx, key, data, contentType)
	})
}

func (s *BlobStore) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// ObjectKey returns the object key the artifact id is stored under.
func (s *BlobStore) ObjectKey(id string) string {
	return s.key(objectName(id))
}

func (s *BlobStore) Save(ctx context.Context, a *common.GraphArtifact) error {
	if err := validID(a.ID); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, a); err != nil {
		return err
	}
	if err := s.put(ctx, s.key(objectName(a.ID)), buf.Bytes(), "application/gzip"); err != nil {
		return fmt.Errorf("failed to upload artifact: %w", err)
	}

	meta, err := json.Marshal(MetadataOf(a))
	if err != nil {
		return err
	}
	if err := s.put(ctx, s.key(paramsName(a.ID)), meta, "application/json"); err != nil {
		return fmt.Errorf("failed to upload artifact metadata: %w", err)
	}
	if err := s.put(ctx, s.key(latestKey), []byte(a.ID), "text/plain"); err != nil {
		return fmt.Errorf("failed to publish artifact: %w", err)
	}

	logger.Info("[Artifact] Uploaded artifact", "id", a.ID, "prefix", s.prefix)
	if s.keep > 0 {
		if err := s.prune(ctx, a.ID); err != nil {
			logger.Warn("[Artifact] Failed to prune old artifacts", "err", err)
		}
	}
	return nil
}

func (s *BlobStore) LoadLatest(ctx context.Context) (*common.GraphArtifact, error) {
	data, err := s.client.Get(ctx, s.key(latestKey))
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, strings.TrimSpace(string(data)))
}

func (s *BlobStore) Load(ctx context.Context, id string) (*common.GraphArtifact, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.key(objectName(id)))
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(data))
}

// prune deletes older artifacts. Artifact ids carry no order, so the
// metadata objects are read to sort by build time.
func (s *BlobStore) prune(ctx context.Context, current string) error {
	keys, err := s.client.List(ctx, s.key(""))
	if err != nil {
		return err
	}
	type item struct {
		id      string
		builtAt string
	}
	var items []item
	for _, k := range keys {
		if !strings.HasSuffix(k, ".params.json") {
			continue
		}
		data, err := s.client.Get(ctx, k)
		if err != nil {
			continue
		}
		var m Metadata
		if json.Unmarshal(data, &m) != nil || m.ID == "" {
			continue
		}
		items = append(items, item{id: m.ID, builtAt: m.BuiltAt})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].builtAt != items[j].builtAt {
			return items[i].builtAt > items[j].builtAt
		}
		return items[i].id > items[j].id
	})

	var stale []string
	kept := 0
	for _, it := range items {
		if it.id == current {
			continue
		}
		if kept < s.keep-1 {
			kept++
			continue
		}
		stale = append(stale, s.key(objectName(it.id)), s.key(paramsName(it.id)))
	}
	if len(stale) == 0 {
		return nil
	}
	return s.client.Delete(ctx, stale...)
}
