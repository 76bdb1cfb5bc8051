package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/task"
)

// TaskRepo implements task.Repository over the tasks table. List-valued
// fields live in JSONB columns.
type TaskRepo struct {
	db DBInterface
}

func NewTaskRepo(db DBInterface) *TaskRepo {
	return &TaskRepo{db: db}
}

type taskRow struct {
	ID                 string     `db:"id"`
	BranchID           string     `db:"branch_id"`
	Title              string     `db:"title"`
	Description        string     `db:"description"`
	Status             string     `db:"status"`
	Priority           string     `db:"priority"`
	Details            string     `db:"details"`
	EstimatedEffort    string     `db:"estimated_effort"`
	DueDate            *time.Time `db:"due_date"`
	ContextID          string     `db:"context_id"`
	ProgressPercentage int        `db:"progress_percentage"`
	Assignees          []byte     `db:"assignees"`
	Labels             []byte     `db:"labels"`
	Dependencies       []byte     `db:"dependencies"`
	Subtasks           []byte     `db:"subtasks"`
	ProgressNotes      []byte     `db:"progress_notes"`
	Archived           bool       `db:"archived"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

func (r *taskRow) toTask() (*task.Task, error) {
	assignees, err := idsFromJSONB(r.Assignees)
	if err != nil {
		return nil, fmt.Errorf("decoding assignees: %w", err)
	}
	dependencies, err := idsFromJSONB(r.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("decoding dependencies: %w", err)
	}
	subtasks, err := idsFromJSONB(r.Subtasks)
	if err != nil {
		return nil, fmt.Errorf("decoding subtasks: %w", err)
	}
	var labels []string
	if err := FromJSONB(r.Labels, &labels); err != nil {
		return nil, fmt.Errorf("decoding labels: %w", err)
	}
	var notes []string
	if err := FromJSONB(r.ProgressNotes, &notes); err != nil {
		return nil, fmt.Errorf("decoding progress notes: %w", err)
	}
	return &task.Task{
		ID:                 core.ID(r.ID),
		BranchID:           core.ID(r.BranchID),
		Title:              r.Title,
		Description:        r.Description,
		Status:             core.TaskStatus(r.Status),
		Priority:           core.Priority(r.Priority),
		Details:            r.Details,
		EstimatedEffort:    r.EstimatedEffort,
		DueDate:            r.DueDate,
		ContextID:          core.ID(r.ContextID),
		ProgressPercentage: r.ProgressPercentage,
		Assignees:          assignees,
		Labels:             labels,
		Dependencies:       dependencies,
		Subtasks:           subtasks,
		ProgressNotes:      notes,
		Archived:           r.Archived,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}, nil
}

func taskValues(t *task.Task) (map[string]any, error) {
	assignees, err := idsToJSONB(t.Assignees)
	if err != nil {
		return nil, err
	}
	labels, err := ToJSONB(t.Labels)
	if err != nil {
		return nil, err
	}
	dependencies, err := idsToJSONB(t.Dependencies)
	if err != nil {
		return nil, err
	}
	subtasks, err := idsToJSONB(t.Subtasks)
	if err != nil {
		return nil, err
	}
	notes, err := ToJSONB(t.ProgressNotes)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":                  t.ID.String(),
		"branch_id":           t.BranchID.String(),
		"title":               t.Title,
		"description":         t.Description,
		"status":              t.Status.String(),
		"priority":            t.Priority.String(),
		"details":             t.Details,
		"estimated_effort":    t.EstimatedEffort,
		"due_date":            t.DueDate,
		"context_id":          t.ContextID.String(),
		"progress_percentage": t.ProgressPercentage,
		"assignees":           assignees,
		"labels":              labels,
		"dependencies":        dependencies,
		"subtasks":            subtasks,
		"progress_notes":      notes,
		"archived":            t.Archived,
		"created_at":          t.CreatedAt,
		"updated_at":          t.UpdatedAt,
	}, nil
}

func (r *TaskRepo) Get(ctx context.Context, id core.ID) (*task.Task, error) {
	return r.get(ctx, id, false)
}

func (r *TaskRepo) FindByIDAllStates(ctx context.Context, id core.ID) (*task.Task, error) {
	return r.get(ctx, id, true)
}

func (r *TaskRepo) get(ctx context.Context, id core.ID, includeArchived bool) (*task.Task, error) {
	sb := squirrel.Select("*").
		From("tasks").
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar)
	if !includeArchived {
		sb = sb.Where(squirrel.Eq{"archived": false})
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var row taskRow
	if err := pgxscan.Get(ctx, querier(ctx, r.db), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NotFoundError("task", id)
		}
		return nil, core.NewError(core.CodeDatabaseError, "task lookup failed", map[string]any{
			"cause": err.Error(),
		})
	}
	return row.toTask()
}

func (r *TaskRepo) Create(ctx context.Context, t *task.Task) error {
	values, err := taskValues(t)
	if err != nil {
		return err
	}
	sql, args, err := squirrel.Insert("tasks").
		SetMap(values).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if _, err := querier(ctx, r.db).Exec(ctx, sql, args...); err != nil {
		return core.NewError(core.CodeDatabaseError, "task insert failed", map[string]any{
			"cause": err.Error(),
		})
	}
	return nil
}

func (r *TaskRepo) Update(ctx context.Context, id core.ID, t *task.Task) error {
	values, err := taskValues(t)
	if err != nil {
		return err
	}
	delete(values, "id")
	delete(values, "created_at")
	sql, args, err := squirrel.Update("tasks").
		SetMap(values).
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	tag, err := querier(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return core.NewError(core.CodeDatabaseError, "task update failed", map[string]any{
			"cause": err.Error(),
		})
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundError("task", id)
	}
	return nil
}

func (r *TaskRepo) Delete(ctx context.Context, id core.ID) error {
	sql, args, err := squirrel.Delete("tasks").
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	tag, err := querier(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return core.NewError(core.CodeDatabaseError, "task delete failed", map[string]any{
			"cause": err.Error(),
		})
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundError("task", id)
	}
	return nil
}

func (r *TaskRepo) Exists(ctx context.Context, id core.ID) (bool, error) {
	sql, args, err := squirrel.Select("1").
		From("tasks").
		Where(squirrel.Eq{"id": id.String(), "archived": false}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building query: %w", err)
	}
	var one int
	if err := pgxscan.Get(ctx, querier(ctx, r.db), &one, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, core.NewError(core.CodeDatabaseError, "task existence check failed", map[string]any{
			"cause": err.Error(),
		})
	}
	return true, nil
}

func (r *TaskRepo) List(ctx context.Context, filter *task.Filter) ([]*task.Task, error) {
	sb := squirrel.Select("*").
		From("tasks").
		Where(squirrel.Eq{"archived": false}).
		OrderBy("updated_at DESC", "id ASC").
		PlaceholderFormat(squirrel.Dollar)
	sb = applyTaskFilter(sb, filter)
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var rows []*taskRow
	if err := pgxscan.Select(ctx, querier(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, core.NewError(core.CodeDatabaseError, "task listing failed", map[string]any{
			"cause": err.Error(),
		})
	}
	tasks := make([]*task.Task, 0, len(rows))
	for _, row := range rows {
		t, err := row.toTask()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func applyTaskFilter(sb squirrel.SelectBuilder, filter *task.Filter) squirrel.SelectBuilder {
	if filter == nil {
		return sb
	}
	if filter.BranchID != nil {
		sb = sb.Where(squirrel.Eq{"branch_id": filter.BranchID.String()})
	}
	if filter.Status != nil {
		sb = sb.Where(squirrel.Eq{"status": filter.Status.String()})
	}
	if filter.Priority != nil {
		sb = sb.Where(squirrel.Eq{"priority": filter.Priority.String()})
	}
	for _, assignee := range filter.Assignees {
		sb = sb.Where("assignees @> ?", fmt.Sprintf(`["%s"]`, assignee))
	}
	for _, label := range filter.Labels {
		sb = sb.Where("labels @> ?", fmt.Sprintf(`["%s"]`, label))
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		sb = sb.Where(squirrel.Or{
			squirrel.ILike{"title": like},
			squirrel.ILike{"description": like},
		})
	}
	if filter.Limit > 0 {
		sb = sb.Limit(uint64(filter.Limit))
	}
	return sb
}

// FindDependents returns tasks declaring a dependency on id, archived
// included so deletes stay safe.
func (r *TaskRepo) FindDependents(ctx context.Context, id core.ID) ([]*task.Task, error) {
	sb := squirrel.Select("*").
		From("tasks").
		Where("dependencies @> ?", fmt.Sprintf(`["%s"]`, id)).
		OrderBy("updated_at DESC", "id ASC").
		PlaceholderFormat(squirrel.Dollar)
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var rows []*taskRow
	if err := pgxscan.Select(ctx, querier(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, core.NewError(core.CodeDatabaseError, "dependent lookup failed", map[string]any{
			"cause": err.Error(),
		})
	}
	tasks := make([]*task.Task, 0, len(rows))
	for _, row := range rows {
		t, err := row.toTask()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
