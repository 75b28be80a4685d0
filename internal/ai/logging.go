package ai

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/jobseekr/internal/logger"
	"github.com/spigell/jobseekr/internal/utils"
)

type loggingService struct {
	next         Service
	logger       *zap.Logger
	maxLogLength int
}

// WithLogging logs every analysis of next with its duration and a truncated response.
func WithLogging(next Service, log *zap.Logger, maxLogLength int) Service {
	return &loggingService{
		next:         next,
		logger:       logger.WithFields(log, logger.StringFields(logger.StringField{Key: logger.FieldProvider, Value: next.Name()})...),
		maxLogLength: maxLogLength,
	}
}

func (s *loggingService) Analyze(ctx context.Context, req Request) (string, error) {
	started := time.Now()
	out, err := s.next.Analyze(ctx, req)

	fields := []zap.Field{
		zap.String("kind", string(req.Kind)),
		zap.Int("content_length", len(req.Content)),
		zap.Duration("took", time.Since(started)),
	}
	if err != nil {
		s.logger.Warn("ai analysis failed", append(fields, logger.ErrorFields(err)...)...)
		return "", err
	}

	s.logger.Debug("ai analysis done", append(fields, zap.String("response", utils.TruncateForLog(out, s.maxLogLength)))...)
	return out, nil
}

func (s *loggingService) IsAvailable(ctx context.Context) bool {
	ok := s.next.IsAvailable(ctx)
	s.logger.Debug("ai availability probe", zap.Bool("available", ok))
	return ok
}

func (s *loggingService) Name() string {
	return s.next.Name()
}
