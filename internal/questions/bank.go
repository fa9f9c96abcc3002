package questions

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/recruitx/recruitx/internal/storage"
)

// DefaultCount is the number of questions generated per interview.
const DefaultCount = 5

// Store is the persistence the Bank needs.
type Store interface {
	ListQuestions(ctx context.Context, interviewID string) ([]storage.Question, error)
	SaveQuestions(ctx context.Context, interviewID string, qs []storage.Question) ([]storage.Question, error)
}

// Bank returns the persisted question sequence of an interview, generating
// and storing it on first use. Concurrent first uses within one process share
// a single generation; across processes the store keeps the first committed
// sequence.
type Bank struct {
	store    Store
	provider Provider
	count    int
	group    singleflight.Group
	logger   *slog.Logger
}

func NewBank(store Store, provider Provider, count int, logger *slog.Logger) *Bank {
	if count <= 0 {
		count = DefaultCount
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bank{store: store, provider: provider, count: count, logger: logger}
}

// Questions returns the question sequence of iv. When generation fails the
// result is empty with a nil error and nothing is stored, so a later call
// retries. Storage failures are returned as errors.
func (b *Bank) Questions(ctx context.Context, iv storage.Interview) ([]storage.Question, error) {
	stored, err := b.store.ListQuestions(ctx, iv.ID)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		return stored, nil
	}

	v, err, _ := b.group.Do(iv.ID, func() (any, error) {
		generated, err := b.provider.Generate(ctx, iv.JobDescription, b.count)
		if err != nil {
			b.logger.Warn("question generation failed", "interview_id", iv.ID, "error", err)
			return []storage.Question(nil), nil
		}
		if len(generated) == 0 {
			b.logger.Warn("question generation returned no questions", "interview_id", iv.ID)
			return []storage.Question(nil), nil
		}
		return b.store.SaveQuestions(ctx, iv.ID, generated)
	})
	if err != nil {
		return nil, err
	}
	qs := v.([]storage.Question)
	if len(qs) > 0 {
		b.logger.Debug("question sequence ready", "interview_id", iv.ID, "count", len(qs))
	}
	return qs, nil
}
