package ingestion

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aevon-lab/pulse/internal/ratelimit"
)

// DefaultMaxBatchSize is the largest batch a client may send.
const DefaultMaxBatchSize = 100

// Options configures the ingestion endpoint.
type Options struct {
	MaxBodySizeMB int
	MaxBatchSize  int
}

type Service struct {
	validator    *Validator
	writer       Enqueuer
	maxBodyBytes int64
	maxBatchSize int
	now          func() time.Time
	newID        func() string
}

func NewService(writer Enqueuer, opts Options) *Service {
	if writer == nil {
		panic("ingestion: writer must not be nil")
	}
	if opts.MaxBodySizeMB <= 0 {
		opts.MaxBodySizeMB = 1
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxBatchSize
	}
	return &Service{
		validator:    NewValidator(),
		writer:       writer,
		maxBodyBytes: int64(opts.MaxBodySizeMB) * 1024 * 1024,
		maxBatchSize: opts.MaxBatchSize,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// RegisterRoutes mounts POST /events on r. The body is buffered before the
// ingestion limiter runs, since the limiter keys on its first item. A nil
// admitter disables limiting.
func (s *Service) RegisterRoutes(r gin.IRouter, admitter ratelimit.Admitter) {
	handlers := []gin.HandlerFunc{s.captureBody}
	if admitter != nil {
		handlers = append(handlers, ratelimit.Middleware(
			ratelimit.PolicyIngestion,
			ratelimit.IngestionRule(admitter, BufferedBody),
		))
	}
	handlers = append(handlers, s.IngestHandler)

	r.POST("/events", handlers...)
}
