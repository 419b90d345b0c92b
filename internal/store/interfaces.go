package store

import (
	"context"
	"database/sql"
)

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx
// This allows us to pass either a connection pool or an active transaction to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// TaskStore handles the persistence of export and ingestion tasks.
type TaskStore interface {
	// CreateTask inserts a new task. It returns ErrDuplicatePath when the
	// model path was already submitted for the same task type.
	CreateTask(ctx context.Context, tx DBTransaction, task *Task) error

	// ListTasks returns the most recently created tasks first. An empty
	// statuses slice matches every status.
	ListTasks(ctx context.Context, statuses []TaskStatus, limit int) ([]Task, error)

	// AdvanceTasks moves up to limit unfinished tasks forward by step percent,
	// completing those that reach 100. It returns the number of tasks touched.
	AdvanceTasks(ctx context.Context, step float64, limit int) (int64, error)

	// CountByStatus returns the number of tasks per status.
	CountByStatus(ctx context.Context) (map[TaskStatus]int64, error)
}
