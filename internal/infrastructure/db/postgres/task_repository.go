package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskboard/taskboard-api/internal/core/domain"
	"github.com/taskboard/taskboard-api/internal/core/ports"
)

// sortColumns is the whitelist of columns List accepts for ordering.
// Anything else falls back to created_at so sort input can never inject SQL.
var sortColumns = map[string]string{
	"created_at": "t.created_at",
	"updated_at": "t.updated_at",
	"due_date":   "t.due_date",
	"priority":   "t.priority",
	"status":     "t.status",
	"title":      "t.title",
}

// TaskRepository implements ports.TaskRepository using PostgreSQL.
type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

const taskColumns = `
	t.id, t.title, t.description, t.status, t.priority,
	t.assignee_id, t.creator_id, t.due_date, t.completed_at,
	t.created_at, t.updated_at, t.version,
	c.id, c.username, c.email,
	a.id, a.username, a.email`

const taskJoins = `
	FROM tasks t
	JOIN users c ON c.id = t.creator_id
	LEFT JOIN users a ON a.id = t.assignee_id`

// Create inserts a new task row.
func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO tasks (id, title, description, status, priority, assignee_id,
			creator_id, due_date, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.AssigneeID,
		t.CreatorID, t.DueDate, t.CreatedAt, t.UpdatedAt, t.Version,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// FindByID retrieves a live task by id with creator/assignee display data joined.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+taskJoins+` WHERE t.id = $1 AND t.deleted_at IS NULL`, id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return t, nil
}

// List returns a page of tasks matching filter and the total count.
func (r *TaskRepository) List(ctx context.Context, f ports.ListTasksFilter) ([]*domain.Task, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	where, args := buildTaskFilter(f)

	var total int64
	countQuery := `SELECT COUNT(*)` + taskJoins + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "t.created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		taskColumns, taskJoins, where, col, dir, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, total, nil
}

// Update applies upd only when the stored version matches expectedVersion.
// The version check lives in the WHERE clause, so the compare-and-swap is
// atomic at the database: concurrent writers race and exactly one wins.
func (r *TaskRepository) Update(ctx context.Context, id string, expectedVersion int64, upd ports.TaskUpdate) (*domain.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	sets := []string{"version = version + 1", "updated_at = $1"}
	args := []any{time.Now().UTC()}

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Priority != nil {
		add("priority", *upd.Priority)
	}
	if upd.AssigneeID != nil {
		add("assignee_id", *upd.AssigneeID)
	}
	if upd.DueDate != nil {
		add("due_date", *upd.DueDate)
	}
	if upd.CompletedAt != nil {
		add("completed_at", *upd.CompletedAt)
	}

	args = append(args, id, expectedVersion)
	query := fmt.Sprintf(
		`UPDATE tasks SET %s WHERE id = $%d AND version = $%d AND deleted_at IS NULL`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish "gone" from "version raced": re-check the live row.
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrVersionConflict
	}

	return r.FindByID(ctx, id)
}

// SoftDelete marks the task deleted and bumps the version.
func (r *TaskRepository) SoftDelete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET deleted_at = $1, updated_at = $1, version = version + 1
		WHERE id = $2 AND deleted_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("soft delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// Stats computes all aggregate counts in one conditional-count query.
func (r *TaskRepository) Stats(ctx context.Context, scopeUserID string) (*ports.TaskStats, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	where := "WHERE deleted_at IS NULL"
	var args []any
	if scopeUserID != "" {
		args = append(args, scopeUserID)
		where += " AND (creator_id = $1 OR assignee_id = $1)"
	}

	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'todo'),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status = 'review'),
			COUNT(*) FILTER (WHERE status = 'done'),
			COUNT(*) FILTER (WHERE priority = 'low'),
			COUNT(*) FILTER (WHERE priority = 'medium'),
			COUNT(*) FILTER (WHERE priority = 'high'),
			COUNT(*) FILTER (WHERE priority = 'urgent'),
			COUNT(*) FILTER (WHERE due_date < NOW() AND status <> 'done')
		FROM tasks %s`, where)

	var s ports.TaskStats
	var todo, inProgress, review, done, low, medium, high, urgent int64
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&s.Total, &todo, &inProgress, &review, &done,
		&low, &medium, &high, &urgent, &s.Overdue,
	)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}

	s.ByStatus = map[string]int64{
		"todo": todo, "in_progress": inProgress, "review": review, "done": done,
	}
	s.ByPriority = map[string]int64{
		"low": low, "medium": medium, "high": high, "urgent": urgent,
	}
	return &s, nil
}

// buildTaskFilter renders the WHERE clause shared by List's count and page queries.
func buildTaskFilter(f ports.ListTasksFilter) (string, []any) {
	conds := []string{"t.deleted_at IS NULL"}
	var args []any

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ScopeUserID != "" {
		add("(t.creator_id = $%[1]d OR t.assignee_id = $%[1]d)", f.ScopeUserID)
	}
	if f.Status != "" {
		add("t.status = $%d", f.Status)
	}
	if f.Priority != "" {
		add("t.priority = $%d", f.Priority)
	}
	if f.AssigneeID != "" {
		add("t.assignee_id = $%d", f.AssigneeID)
	}
	if f.CreatorID != "" {
		add("t.creator_id = $%d", f.CreatorID)
	}
	if f.Search != "" {
		add("(t.title ILIKE $%[1]d OR t.description ILIKE $%[1]d)", "%"+f.Search+"%")
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// scanTask reads one joined task row.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	var creator domain.UserRef
	var assigneeID, assigneeName, assigneeEmail *string

	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.AssigneeID, &t.CreatorID, &t.DueDate, &t.CompletedAt,
		&t.CreatedAt, &t.UpdatedAt, &t.Version,
		&creator.ID, &creator.Username, &creator.Email,
		&assigneeID, &assigneeName, &assigneeEmail,
	)
	if err != nil {
		return nil, err
	}

	t.Creator = &creator
	if assigneeID != nil {
		t.Assignee = &domain.UserRef{ID: *assigneeID, Username: *assigneeName}
		if assigneeEmail != nil {
			t.Assignee.Email = *assigneeEmail
		}
	}
	return &t, nil
}
