package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tileexport/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return &Store{db: db}, mock
}

var taskColumns = []string{
	"id", "resource_id", "version", "type", "description", "status", "reason",
	"model_path", "tileset_filename", "parameters", "percentage", "created_at", "updated_at",
}

func newTask() *store.Task {
	now := time.Now().UTC().Truncate(time.Second)
	return &store.Task{
		ID:              uuid.New(),
		ResourceID:      "model-1",
		Version:         "1",
		Type:            store.TaskTypeExport,
		Status:          store.TaskStatusPending,
		ModelPath:       "/tmp/tilesets/a",
		TilesetFilename: "tileset.json",
		Parameters:      json.RawMessage(`{"srs":"4326"}`),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestCreateTask_Success(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	task := newTask()

	mock.ExpectExec(`INSERT INTO tasks`).
		WithArgs(
			task.ID, task.ResourceID, task.Version, task.Type, task.Description, task.Status, task.Reason,
			task.ModelPath, task.TilesetFilename, []byte(task.Parameters), task.Percentage, task.CreatedAt, task.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store_.CreateTask(context.Background(), nil, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateTask_WithinTransaction(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	task := newTask()
	task.Parameters = nil

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO tasks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := store_.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	if err := store_.CreateTask(ctx, tx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateTask_DuplicatePath(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	mock.ExpectExec(`INSERT INTO tasks`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := store_.CreateTask(context.Background(), nil, newTask())
	if !errors.Is(err, store.ErrDuplicatePath) {
		t.Errorf("expected ErrDuplicatePath, got %v", err)
	}
}

func TestCreateTask_OtherError(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	mock.ExpectExec(`INSERT INTO tasks`).WillReturnError(errors.New("connection reset"))

	err := store_.CreateTask(context.Background(), nil, newTask())
	if err == nil || errors.Is(err, store.ErrDuplicatePath) {
		t.Errorf("expected wrapped database error, got %v", err)
	}
}

func TestListTasks_AllStatuses(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	id1, id2 := uuid.New(), uuid.New()
	created := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(`SELECT id, resource_id, .* FROM tasks\s+ORDER BY created_at DESC\s+LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows(taskColumns).
			AddRow(id1.String(), "model-2", "1", "Export3DModel", "", "In-Progress", "", "/b", "tileset.json", nil, 50.0, created, created).
			AddRow(id2.String(), "model-1", "1", "Ingestion3DModel", "", "Completed", "", "/a", "tileset.json", []byte(`{"k":1}`), 100.0, created, created))

	tasks, err := store_.ListTasks(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != id1 || tasks[0].Status != store.TaskStatusInProgress || tasks[0].Percentage != 50 {
		t.Errorf("unexpected first task: %+v", tasks[0])
	}
	if tasks[0].Parameters != nil {
		t.Errorf("expected nil parameters, got %s", tasks[0].Parameters)
	}
	if tasks[1].Type != store.TaskTypeIngestion || string(tasks[1].Parameters) != `{"k":1}` {
		t.Errorf("unexpected second task: %+v", tasks[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestListTasks_FilterByStatus(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	mock.ExpectQuery(`WHERE status = ANY\(\$2\)`).
		WithArgs(10, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(taskColumns))

	tasks, err := store_.ListTasks(context.Background(), []store.TaskStatus{store.TaskStatusPending}, 10)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected no tasks, got %d", len(tasks))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestAdvanceTasks(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	mock.ExpectExec(`UPDATE tasks\s+SET percentage = LEAST\(percentage \+ \$1, 100\)`).
		WithArgs(25.0, store.TaskStatusCompleted, store.TaskStatusInProgress, sqlmock.AnyArg(), 50).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store_.AdvanceTasks(context.Background(), 25, 50)
	if err != nil {
		t.Fatalf("AdvanceTasks failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows advanced, got %d", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestAdvanceTasks_Error(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	mock.ExpectExec(`UPDATE tasks`).WillReturnError(errors.New("deadlock detected"))

	if _, err := store_.AdvanceTasks(context.Background(), 25, 0); err == nil {
		t.Error("expected error")
	}
}

func TestCountByStatus(t *testing.T) {
	store_, mock := newMockStore(t)
	defer store_.db.Close()

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM tasks GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("Pending", 2).
			AddRow("Completed", 5))

	counts, err := store_.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts[store.TaskStatusPending] != 2 || counts[store.TaskStatusCompleted] != 5 {
		t.Errorf("unexpected counts: %v", counts)
	}
	if counts[store.TaskStatusFailed] != 0 {
		t.Errorf("expected zero failed, got %d", counts[store.TaskStatusFailed])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
