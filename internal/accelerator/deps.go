package accelerator

import (
	"context"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/probe"
	"github.com/MrSnakeDoc/clashfun/internal/subscription"
)

// Loader fetches subscription payloads.
type Loader interface {
	Load(ctx context.Context, source string) (*subscription.Payload, error)
}

// Prober runs one probing cycle.
type Prober interface {
	Probe(ctx context.Context, nodes []*domain.Node, opt probe.Options) (domain.ProbeResults, error)
}

// Session is the proxy lifecycle the accelerator drives.
type Session interface {
	Start(ctx context.Context, sel *domain.Selection) error
	Stop(ctx context.Context) error
	Switch(ctx context.Context, sel *domain.Selection) error
	Verify(ctx context.Context) error
	Status() domain.SessionStatus
}

// Store persists snapshots between restarts. All writes are best effort.
type Store interface {
	SaveSubscription(ctx context.Context, snap domain.SubscriptionSnapshot) error
	SaveSelection(ctx context.Context, rec domain.SelectionRecord) error
	AppendProbeCycle(ctx context.Context, cycle *domain.ProbeCycle) error
	ProbeHistory(ctx context.Context, id string, limit int) ([]domain.ProbeSample, error)
}
