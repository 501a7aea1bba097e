package review

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"go_crew/internal/config"
	"go_crew/internal/model"
	"go_crew/internal/ws"
)

// guardKey is the single-flight key for the production cycle
const guardKey = "crew:queue:production-cycle"

// Guard is a single-flight claim on a trigger condition. The Redis-backed
// implementation lives in internal/cache; tests plug in an in-memory one.
type Guard interface {
	Acquire(ctx context.Context, key string, token string, ttl time.Duration) (bool, error)
}

// QueueTrigger wakes the production pipeline when work-in-flight drops to
// the configured floor. Debounced: at most one cycle per guard window,
// regardless of how many callers race on the same condition.
type QueueTrigger struct {
	db     *gorm.DB
	guard  Guard
	logger *logrus.Entry
	cfg    config.QueueTriggerConfig
}

// NewQueueTrigger creates a queue trigger
func NewQueueTrigger(db *gorm.DB, guard Guard, logger *logrus.Entry, cfg config.QueueTriggerConfig) *QueueTrigger {
	return &QueueTrigger{
		db:     db,
		guard:  guard,
		logger: logger.WithField("component", "queue-trigger"),
		cfg:    cfg,
	}
}

// TriggerIfNeeded checks outstanding work against the floor and enqueues
// exactly one production cycle when at or below it. Returns whether this
// call enqueued the cycle.
func (qt *QueueTrigger) TriggerIfNeeded(ctx context.Context) (bool, error) {
	if !qt.cfg.Enabled {
		return false, nil
	}

	var outstanding int64
	err := qt.db.Model(&model.Task{}).
		Where("status IN ?", []model.TaskStatus{model.TaskStatusTodo, model.TaskStatusInProgress}).
		Count(&outstanding).Error
	if err != nil {
		return false, fmt.Errorf("failed to count outstanding tasks: %w", err)
	}

	if outstanding > int64(qt.cfg.QueueFloor) {
		return false, nil
	}

	token := uuid.NewString()
	ttl := time.Duration(qt.cfg.GuardTTLSec) * time.Second
	won, err := qt.guard.Acquire(ctx, guardKey, token, ttl)
	if err != nil {
		return false, err
	}
	if !won {
		// A cycle is already pending for this window
		return false, nil
	}

	task := model.Task{
		Title:       fmt.Sprintf("Production cycle %s", time.Now().Format("2006-01-02 15:04")),
		Description: "Generate the next batch of content tasks: queue depth dropped to the floor.",
		Status:      model.TaskStatusBacklog,
		Tags:        datatypes.JSON([]byte(`["production"]`)),
	}
	if err := qt.db.Create(&task).Error; err != nil {
		return false, fmt.Errorf("failed to enqueue production cycle: %w", err)
	}

	qt.logger.Infof("Production cycle enqueued as task %d (outstanding=%d, floor=%d)", task.ID, outstanding, qt.cfg.QueueFloor)
	ws.PublishQueueTrigger(int(outstanding), task.ID)
	return true, nil
}
