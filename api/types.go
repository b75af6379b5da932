package api

import (
	"context"

	"taskboard-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	ListTasks(ctx context.Context, userID string) ([]domain.Task, error)
	CreateTask(ctx context.Context, userID string, draft domain.Draft) (domain.Task, error)
	UpdateTask(ctx context.Context, userID string, taskID int64, patch domain.Patch) (domain.Task, error)
	DeleteTask(ctx context.Context, userID string, taskID int64) error
	ReorderTasks(ctx context.Context, userID string, ids []int64) ([]domain.Task, error)
	Ping(ctx context.Context) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents reprocessing of duplicate create submissions.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the create fails so the
	// caller may retry with the same key.
	Remove(ctx context.Context, userID, key string) error
}
