package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bridgewise/backend/pkg/artifact"
	"github.com/bridgewise/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// ArtifactPublisher announces new artifacts on ArtifactReadyTopic.
// amqp091 channels are not safe for concurrent publishing, so calls are
// serialised.
type ArtifactPublisher struct {
	mu sync.Mutex
	ch Channel
}

func NewArtifactPublisher(ch Channel) *ArtifactPublisher {
	return &ArtifactPublisher{ch: ch}
}

func (p *ArtifactPublisher) PublishArtifactReady(ctx context.Context, meta artifact.Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := PublishTopic(ctx, p.ch, ArtifactReadyTopic, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", ArtifactReadyTopic, err)
	}
	return nil
}

// RecomputePublisher enqueues recompute requests.
type RecomputePublisher struct {
	mu sync.Mutex
	ch Channel
}

func NewRecomputePublisher(ch Channel) *RecomputePublisher {
	return &RecomputePublisher{ch: ch}
}

func (p *RecomputePublisher) PublishRecompute(ctx context.Context, msg RecomputeMsg) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishFIFO(ctx, p.ch, RecomputeQueue, data)
}

// SubscribeArtifactReady binds an exclusive, server named queue to
// ArtifactReadyTopic and calls fn for every announcement until ctx is done
// or the delivery channel closes. Malformed messages are logged and dropped.
func SubscribeArtifactReady(ctx context.Context, ch Channel, fn func(ctx context.Context, meta artifact.Metadata)) error {
	if err := declareExchange(ch); err != nil {
		return err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, ArtifactReadyTopic, Exchange, false, nil); err != nil {
		return err
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("[Queue] Artifact subscription closed")
					return
				}
				handleArtifactReady(ctx, msg, fn)
			}
		}
	}()
	return nil
}

func handleArtifactReady(ctx context.Context, msg amqp091.Delivery, fn func(ctx context.Context, meta artifact.Metadata)) {
	var meta artifact.Metadata
	if err := json.Unmarshal(msg.Body, &meta); err != nil || meta.ID == "" {
		logger.Warn("[Queue] Dropping malformed artifact announcement", "err", err)
		return
	}
	fn(ctx, meta)
}
