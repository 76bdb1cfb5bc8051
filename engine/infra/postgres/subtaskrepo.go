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

// SubtaskRepo implements task.SubtaskRepository over the subtasks table.
type SubtaskRepo struct {
	db DBInterface
}

func NewSubtaskRepo(db DBInterface) *SubtaskRepo {
	return &SubtaskRepo{db: db}
}

type subtaskRow struct {
	ID                 string     `db:"id"`
	TaskID             string     `db:"task_id"`
	Title              string     `db:"title"`
	Description        string     `db:"description"`
	Status             string     `db:"status"`
	Priority           string     `db:"priority"`
	Assignees          []byte     `db:"assignees"`
	ProgressPercentage int        `db:"progress_percentage"`
	ProgressNotes      []byte     `db:"progress_notes"`
	Blockers           []byte     `db:"blockers"`
	CompletionSummary  string     `db:"completion_summary"`
	ImpactOnParent     string     `db:"impact_on_parent"`
	InsightsFound      []byte     `db:"insights_found"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
	CompletedAt        *time.Time `db:"completed_at"`
}

func (r *subtaskRow) toSubtask() (*task.Subtask, error) {
	assignees, err := idsFromJSONB(r.Assignees)
	if err != nil {
		return nil, fmt.Errorf("decoding assignees: %w", err)
	}
	var notes, blockers, insights []string
	if err := FromJSONB(r.ProgressNotes, &notes); err != nil {
		return nil, fmt.Errorf("decoding progress notes: %w", err)
	}
	if err := FromJSONB(r.Blockers, &blockers); err != nil {
		return nil, fmt.Errorf("decoding blockers: %w", err)
	}
	if err := FromJSONB(r.InsightsFound, &insights); err != nil {
		return nil, fmt.Errorf("decoding insights: %w", err)
	}
	return &task.Subtask{
		ID:                 core.ID(r.ID),
		TaskID:             core.ID(r.TaskID),
		Title:              r.Title,
		Description:        r.Description,
		Status:             core.TaskStatus(r.Status),
		Priority:           core.Priority(r.Priority),
		Assignees:          assignees,
		ProgressPercentage: r.ProgressPercentage,
		ProgressNotes:      notes,
		Blockers:           blockers,
		CompletionSummary:  r.CompletionSummary,
		ImpactOnParent:     r.ImpactOnParent,
		InsightsFound:      insights,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		CompletedAt:        r.CompletedAt,
	}, nil
}

func subtaskValues(s *task.Subtask) (map[string]any, error) {
	assignees, err := idsToJSONB(s.Assignees)
	if err != nil {
		return nil, err
	}
	notes, err := ToJSONB(s.ProgressNotes)
	if err != nil {
		return nil, err
	}
	blockers, err := ToJSONB(s.Blockers)
	if err != nil {
		return nil, err
	}
	insights, err := ToJSONB(s.InsightsFound)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":                  s.ID.String(),
		"task_id":             s.TaskID.String(),
		"title":               s.Title,
		"description":         s.Description,
		"status":              s.Status.String(),
		"priority":            s.Priority.String(),
		"assignees":           assignees,
		"progress_percentage": s.ProgressPercentage,
		"progress_notes":      notes,
		"blockers":            blockers,
		"completion_summary":  s.CompletionSummary,
		"impact_on_parent":    s.ImpactOnParent,
		"insights_found":      insights,
		"created_at":          s.CreatedAt,
		"updated_at":          s.UpdatedAt,
		"completed_at":        s.CompletedAt,
	}, nil
}

func (r *SubtaskRepo) Get(ctx context.Context, id core.ID) (*task.Subtask, error) {
	sql, args, err := squirrel.Select("*").
		From("subtasks").
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var row subtaskRow
	if err := pgxscan.Get(ctx, querier(ctx, r.db), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NotFoundError("subtask", id)
		}
		return nil, core.NewError(core.CodeDatabaseError, "subtask lookup failed", map[string]any{
			"cause": err.Error(),
		})
	}
	return row.toSubtask()
}

func (r *SubtaskRepo) Create(ctx context.Context, s *task.Subtask) error {
	values, err := subtaskValues(s)
	if err != nil {
		return err
	}
	sql, args, err := squirrel.Insert("subtasks").
		SetMap(values).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if _, err := querier(ctx, r.db).Exec(ctx, sql, args...); err != nil {
		return core.NewError(core.CodeDatabaseError, "subtask insert failed", map[string]any{
			"cause": err.Error(),
		})
	}
	return nil
}

func (r *SubtaskRepo) Update(ctx context.Context, id core.ID, s *task.Subtask) error {
	values, err := subtaskValues(s)
	if err != nil {
		return err
	}
	delete(values, "id")
	delete(values, "created_at")
	sql, args, err := squirrel.Update("subtasks").
		SetMap(values).
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	tag, err := querier(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return core.NewError(core.CodeDatabaseError, "subtask update failed", map[string]any{
			"cause": err.Error(),
		})
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundError("subtask", id)
	}
	return nil
}

func (r *SubtaskRepo) Delete(ctx context.Context, id core.ID) error {
	sql, args, err := squirrel.Delete("subtasks").
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	tag, err := querier(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return core.NewError(core.CodeDatabaseError, "subtask delete failed", map[string]any{
			"cause": err.Error(),
		})
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundError("subtask", id)
	}
	return nil
}

func (r *SubtaskRepo) Exists(ctx context.Context, id core.ID) (bool, error) {
	sql, args, err := squirrel.Select("1").
		From("subtasks").
		Where(squirrel.Eq{"id": id.String()}).
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
		return false, core.NewError(core.CodeDatabaseError, "subtask existence check failed", map[string]any{
			"cause": err.Error(),
		})
	}
	return true, nil
}

func (r *SubtaskRepo) List(ctx context.Context, filter *task.SubtaskFilter) ([]*task.Subtask, error) {
	sb := squirrel.Select("*").
		From("subtasks").
		OrderBy("created_at ASC", "id ASC").
		PlaceholderFormat(squirrel.Dollar)
	if filter != nil {
		if filter.TaskID != nil {
			sb = sb.Where(squirrel.Eq{"task_id": filter.TaskID.String()})
		}
		if filter.Status != nil {
			sb = sb.Where(squirrel.Eq{"status": filter.Status.String()})
		}
		if filter.Limit > 0 {
			sb = sb.Limit(uint64(filter.Limit))
		}
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var rows []*subtaskRow
	if err := pgxscan.Select(ctx, querier(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, core.NewError(core.CodeDatabaseError, "subtask listing failed", map[string]any{
			"cause": err.Error(),
		})
	}
	subtasks := make([]*task.Subtask, 0, len(rows))
	for _, row := range rows {
		s, err := row.toSubtask()
		if err != nil {
			return nil, err
		}
		subtasks = append(subtasks, s)
	}
	return subtasks, nil
}
