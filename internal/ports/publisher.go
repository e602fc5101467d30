package ports

import (
	"context"

	"github.com/bft-labs/stableopt/internal/domain"
)

// Publisher pushes a finished snapshot to a remote ingestion service.
type Publisher interface {
	// Publish returns nil on a 2xx response and an error otherwise.
	Publish(ctx context.Context, snap domain.Snapshot, meta PublishMetadata) error
}

// PublishMetadata identifies the agent to the ingestion service.
// It is sent as HTTP headers.
type PublishMetadata struct {
	// Hostname is the agent's hostname
	Hostname string

	// OSArch is the operating system and architecture (e.g., "linux/amd64")
	OSArch string

	// AuthKey is the API authentication key
	AuthKey string

	// ServiceURL is the base URL of the ingestion service
	ServiceURL string
}
