package worker

import (
	"context"
	"todoTree/internal/date"
	"todoTree/internal/hierarchy"
	"todoTree/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogNotifier writes one info line per user.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID uuid.UUID, today date.Date, tasks []*hierarchy.Node) error {
	titles := make([]string, len(tasks))
	for i, t := range tasks {
		titles[i] = t.Title
	}

	logger.Info("Worker: tasks due soon",
		zap.String("user_id", userID.String()),
		zap.Stringer("today", today),
		zap.Int("count", len(tasks)),
		zap.Strings("titles", titles))
	return nil
}
