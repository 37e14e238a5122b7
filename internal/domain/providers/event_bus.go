package providers

import (
	"context"

	"github.com/optivista/lensadvisor/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// recommendation lifecycle events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.RecommendationEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.RecommendationEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event types
const (
	// EventChannelRecommendations is the channel for all recommendation updates
	EventChannelRecommendations = "recommendation:updates"

	// EventChannelTenantPrefix is the prefix for tenant-specific channels
	EventChannelTenantPrefix = "tenant:"
)

// GetTenantChannel returns the channel name for a specific tenant
func GetTenantChannel(tenantID string) string {
	return EventChannelTenantPrefix + tenantID
}
