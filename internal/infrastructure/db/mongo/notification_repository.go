package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const notificationCollection = "notifications"

// NotificationRepository implements ports.NotificationStore using MongoDB.
type NotificationRepository struct {
	db *mongo.Database
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateAssignmentNotice records that actorName assigned the task to userID.
func (r *NotificationRepository) CreateAssignmentNotice(ctx context.Context, userID, taskID, taskTitle, actorName string) error {
	return r.insert(ctx, "task_assigned", userID, taskID,
		fmt.Sprintf("%s assigned you the task %q", actorName, taskTitle))
}

// CreateCompletionNotice records that actorName completed the task.
func (r *NotificationRepository) CreateCompletionNotice(ctx context.Context, userID, taskID, taskTitle, actorName string) error {
	return r.insert(ctx, "task_completed", userID, taskID,
		fmt.Sprintf("%s completed the task %q", actorName, taskTitle))
}

// CreateUpdateNotice records that actorName changed the task.
func (r *NotificationRepository) CreateUpdateNotice(ctx context.Context, userID, taskID, taskTitle, actorName string) error {
	return r.insert(ctx, "task_updated", userID, taskID,
		fmt.Sprintf("%s updated the task %q", actorName, taskTitle))
}

func (r *NotificationRepository) insert(ctx context.Context, kind, userID, taskID, message string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"_id":        uuid.NewString(),
		"type":       kind,
		"user_id":    userID,
		"task_id":    taskID,
		"message":    message,
		"read":       false,
		"created_at": time.Now().UTC(),
	}
	if _, err := r.db.Collection(notificationCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
