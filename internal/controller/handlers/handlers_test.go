package handlers

import (
	"context"
	"database/sql"

	"tileexport/internal/store"
)

// Mock transaction
type mockTx struct {
	committed bool
	commitErr error
}

func (m *mockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (m *mockTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (m *mockTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (m *mockTx) Commit() error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}

func (m *mockTx) Rollback() error { return nil }

// Mock Store
type mockStore struct {
	beginTxErr error
	commitErr  error
	pingErr    error

	// Task Hooks
	createTaskErr     error
	listTasksResp     []store.Task
	listTasksErr      error
	advanceTasksResp  int64
	countByStatusResp map[store.TaskStatus]int64
	countByStatusErr  error

	// Spies (to verify arguments passed by handlers)
	tx               *mockTx
	capturedTask     *store.Task
	capturedStatuses []store.TaskStatus
	capturedLimit    int
	createTaskCalls  int
}

func (m *mockStore) BeginTx(ctx context.Context) (store.Tx, error) {
	if m.beginTxErr != nil {
		return nil, m.beginTxErr
	}
	m.tx = &mockTx{commitErr: m.commitErr}
	return m.tx, nil
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockStore) CreateTask(ctx context.Context, tx store.DBTransaction, task *store.Task) error {
	m.createTaskCalls++
	m.capturedTask = task
	return m.createTaskErr
}

func (m *mockStore) ListTasks(ctx context.Context, statuses []store.TaskStatus, limit int) ([]store.Task, error) {
	m.capturedStatuses = statuses
	m.capturedLimit = limit
	return m.listTasksResp, m.listTasksErr
}

func (m *mockStore) AdvanceTasks(ctx context.Context, step float64, limit int) (int64, error) {
	return m.advanceTasksResp, nil
}

func (m *mockStore) CountByStatus(ctx context.Context) (map[store.TaskStatus]int64, error) {
	return m.countByStatusResp, m.countByStatusErr
}
