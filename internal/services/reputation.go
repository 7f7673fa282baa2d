package services

import (
	"context"
	"errors"

	"github.com/anonto42/devforum/backend/internal/repositories"
	"go.uber.org/zap"
)

// awardReputation adds points to uid. Failures are logged and swallowed; a user
// without a profile document is skipped.
func awardReputation(ctx context.Context, users repositories.UserRepository, logger *zap.Logger, uid string, points int) {
	if uid == "" || points == 0 {
		return
	}
	err := users.AdjustReputation(ctx, uid, points)
	if err == nil {
		return
	}
	if errors.Is(err, repositories.ErrNotFound) {
		logger.Sugar().Debugf("skipping reputation for unknown user %s", uid)
		return
	}
	logger.Sugar().Errorf("failed to update reputation of %s by %d: %s", uid, points, err.Error())
}
