package deps

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/clashfun/internal/accelerator"
	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/gamedetect"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
	"github.com/MrSnakeDoc/clashfun/internal/subscription"
	"github.com/MrSnakeDoc/clashfun/internal/version"
)

// Accelerator is the subset of *accelerator.Accelerator the handlers drive.
type Accelerator interface {
	Load(ctx context.Context, source string, hint subscription.Format) (*accelerator.Report, error)
	SetSubscription(ctx context.Context, payload *subscription.Payload, hint subscription.Format) (*accelerator.Report, error)
	SelectNode(ctx context.Context, query string) (*domain.Selection, error)
	AutoSelect(ctx context.Context) (*domain.Selection, error)
	Start(ctx context.Context) (*domain.Selection, error)
	Stop(ctx context.Context) error
	Status() accelerator.Status
	Nodes() []accelerator.NodeView
	History(ctx context.Context, name string) ([]domain.ProbeSample, error)
}

// RefreshTrigger queues a health refresh; false means one is already queued.
type RefreshTrigger interface {
	Trigger() bool
}

// GameDetector reports running games.
type GameDetector interface {
	Detect(ctx context.Context) ([]gamedetect.Match, error)
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Build        version.Build
	AllowedHosts []string // Host headers allowed to reach the API (DNS rebinding guard)
	AllowedCIDRS []string // networks allowed to reach the API
	TrustProxy   bool     // true if running behind a trusted reverse proxy

	Accelerator Accelerator
	Refresh     RefreshTrigger
	Games       GameDetector
	RedisClient *redis.Client // nil when the snapshot store is disabled
	ProxyPort   int           // local mixed proxy port, reported in status
	BodyLimit   int64         // max request body for inline subscriptions
}
