// Package http publishes snapshots to a remote ingestion service.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bft-labs/stableopt/internal/domain"
	"github.com/bft-labs/stableopt/internal/ports"
	"github.com/bft-labs/stableopt/pkg/log"
)

const opportunitiesEndpoint = "/v1/ingest/opportunities"

// SnapshotPublisher implements ports.Publisher using HTTP.
type SnapshotPublisher struct {
	client ports.HTTPClient
	logger ports.Logger
}

// NewSnapshotPublisher creates a new HTTP snapshot publisher.
func NewSnapshotPublisher(client ports.HTTPClient, logger ports.Logger) *SnapshotPublisher {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &SnapshotPublisher{
		client: client,
		logger: logger,
	}
}

// Publish posts the snapshot as JSON. Empty snapshots are not sent.
func (p *SnapshotPublisher) Publish(ctx context.Context, snap domain.Snapshot, meta ports.PublishMetadata) error {
	if snap.Empty() {
		return nil
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	url := meta.ServiceURL + opportunitiesEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if meta.AuthKey != "" {
		req.Header.Set("Authorization", "Bearer "+meta.AuthKey)
	}
	req.Header.Set("X-Agent-Hostname", meta.Hostname)
	req.Header.Set("X-Agent-OSArch", meta.OSArch)
	req.Header.Set("X-Snapshot-Id", snap.ID)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	p.logger.Debug("snapshot published",
		log.String("snapshot_id", snap.ID),
		log.Int("opportunities", len(snap.Opportunities)),
	)
	return nil
}
