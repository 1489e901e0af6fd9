package recovery

import (
	"context"

	"go.uber.org/zap"
)

// Updater is the slice of the folio API the service needs.
type Updater interface {
	UpdateRecoveryQuestion(ctx context.Context, identity, question, answer string) error
}

// Service changes the recovery question upstream and keeps the
// verification cache consistent with it.
type Service struct {
	api    Updater
	cache  *Cache
	logger *zap.Logger
}

// NewService wires the recovery service.
func NewService(api Updater, cache *Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, cache: cache, logger: logger}
}

// UpdateRecoveryQuestion stores the new question and answer upstream.
// The cached verification answer for the identity is dropped on success,
// so the next check observes the new state. Upstream errors surface to
// the caller; they belong on the form.
func (s *Service) UpdateRecoveryQuestion(ctx context.Context, identity, question, answer string) error {
	if err := s.api.UpdateRecoveryQuestion(ctx, identity, question, answer); err != nil {
		s.logger.Warn("Recovery question update failed",
			zap.String("identity", identity),
			zap.Error(err),
		)
		return err
	}
	s.cache.Invalidate(ctx, identity)
	s.logger.Info("Recovery question updated", zap.String("identity", identity))
	return nil
}
