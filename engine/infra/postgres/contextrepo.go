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
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
)

// ContextRepo implements hierctx.Repository over a single contexts table
// keyed by (level, id).
type ContextRepo struct {
	db DBInterface
}

func NewContextRepo(db DBInterface) *ContextRepo {
	return &ContextRepo{db: db}
}

type contextRow struct {
	Level               string    `db:"level"`
	ID                  string    `db:"id"`
	ParentID            string    `db:"parent_id"`
	Data                []byte    `db:"data"`
	Version             int       `db:"version"`
	InheritanceDisabled bool      `db:"inheritance_disabled"`
	ForceLocalOnly      bool      `db:"force_local_only"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func (r *contextRow) toContext() (*hierctx.Context, error) {
	data := map[string]any{}
	if err := FromJSONB(r.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding context data: %w", err)
	}
	return &hierctx.Context{
		ID:                  core.ID(r.ID),
		Level:               core.ContextLevel(r.Level),
		ParentID:            core.ID(r.ParentID),
		Data:                data,
		Version:             r.Version,
		InheritanceDisabled: r.InheritanceDisabled,
		ForceLocalOnly:      r.ForceLocalOnly,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}, nil
}

func contextValues(c *hierctx.Context) (map[string]any, error) {
	data, err := ToJSONB(c.Data)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"level":                c.Level.String(),
		"id":                   c.ID.String(),
		"parent_id":            c.ParentID.String(),
		"data":                 data,
		"version":              c.Version,
		"inheritance_disabled": c.InheritanceDisabled,
		"force_local_only":     c.ForceLocalOnly,
		"created_at":           c.CreatedAt,
		"updated_at":           c.UpdatedAt,
	}, nil
}

func (r *ContextRepo) Get(ctx context.Context, level core.ContextLevel, id core.ID) (*hierctx.Context, error) {
	sql, args, err := squirrel.Select("*").
		From("contexts").
		Where(squirrel.Eq{"level": level.String(), "id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var row contextRow
	if err := pgxscan.Get(ctx, querier(ctx, r.db), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NewError(core.CodeNotFound,
				fmt.Sprintf("%s context not found: %s", level, id), map[string]any{
					"entity": "context",
					"level":  level.String(),
					"id":     id.String(),
				})
		}
		return nil, dbError("context lookup failed", err)
	}
	return row.toContext()
}

func (r *ContextRepo) Create(ctx context.Context, c *hierctx.Context) error {
	values, err := contextValues(c)
	if err != nil {
		return err
	}
	sql, args, err := squirrel.Insert("contexts").
		SetMap(values).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if _, err := querier(ctx, r.db).Exec(ctx, sql, args...); err != nil {
		return dbError("context insert failed", err)
	}
	return nil
}

func (r *ContextRepo) Update(ctx context.Context, level core.ContextLevel, id core.ID, c *hierctx.Context) error {
	values, err := contextValues(c)
	if err != nil {
		return err
	}
	delete(values, "level")
	delete(values, "id")
	delete(values, "created_at")
	sql, args, err := squirrel.Update("contexts").
		SetMap(values).
		Where(squirrel.Eq{"level": level.String(), "id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	tag, err := querier(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return dbError("context update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewError(core.CodeNotFound,
			fmt.Sprintf("%s context not found: %s", level, id), nil)
	}
	return nil
}

func (r *ContextRepo) Delete(ctx context.Context, level core.ContextLevel, id core.ID) error {
	sql, args, err := squirrel.Delete("contexts").
		Where(squirrel.Eq{"level": level.String(), "id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	tag, err := querier(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return dbError("context delete failed", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewError(core.CodeNotFound,
			fmt.Sprintf("%s context not found: %s", level, id), nil)
	}
	return nil
}

func (r *ContextRepo) Exists(ctx context.Context, level core.ContextLevel, id core.ID) (bool, error) {
	return existsIn(ctx, querier(ctx, r.db), "contexts",
		squirrel.Eq{"level": level.String(), "id": id.String()})
}

func (r *ContextRepo) List(ctx context.Context, level core.ContextLevel, filter *hierctx.Filter) ([]*hierctx.Context, error) {
	sb := squirrel.Select("*").
		From("contexts").
		Where(squirrel.Eq{"level": level.String()}).
		OrderBy("created_at ASC", "id ASC").
		PlaceholderFormat(squirrel.Dollar)
	if filter != nil {
		if filter.ParentID != nil {
			sb = sb.Where(squirrel.Eq{"parent_id": filter.ParentID.String()})
		}
		if filter.Limit > 0 {
			sb = sb.Limit(uint64(filter.Limit))
		}
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var rows []*contextRow
	if err := pgxscan.Select(ctx, querier(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, dbError("context listing failed", err)
	}
	contexts := make([]*hierctx.Context, 0, len(rows))
	for _, row := range rows {
		c, err := row.toContext()
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, c)
	}
	return contexts, nil
}

// DelegationRepo implements hierctx.DelegationRepository over the
// context_delegations table.
type DelegationRepo struct {
	db DBInterface
}

func NewDelegationRepo(db DBInterface) *DelegationRepo {
	return &DelegationRepo{db: db}
}

type delegationRow struct {
	ID              string     `db:"id"`
	SourceLevel     string     `db:"source_level"`
	SourceID        string     `db:"source_id"`
	TargetLevel     string     `db:"target_level"`
	TargetID        string     `db:"target_id"`
	DelegatedData   []byte     `db:"delegated_data"`
	DataHash        string     `db:"data_hash"`
	Reason          string     `db:"reason"`
	TriggerType     string     `db:"trigger_type"`
	AutoDelegated   bool       `db:"auto_delegated"`
	ConfidenceScore float64    `db:"confidence_score"`
	Processed       bool       `db:"processed"`
	Approved        bool       `db:"approved"`
	ProcessedBy     string     `db:"processed_by"`
	CreatedAt       time.Time  `db:"created_at"`
	ProcessedAt     *time.Time `db:"processed_at"`
}

func (r *delegationRow) toDelegation() (*hierctx.Delegation, error) {
	data := map[string]any{}
	if err := FromJSONB(r.DelegatedData, &data); err != nil {
		return nil, fmt.Errorf("decoding delegated data: %w", err)
	}
	return &hierctx.Delegation{
		ID:              core.ID(r.ID),
		SourceLevel:     core.ContextLevel(r.SourceLevel),
		SourceID:        core.ID(r.SourceID),
		TargetLevel:     core.ContextLevel(r.TargetLevel),
		TargetID:        core.ID(r.TargetID),
		DelegatedData:   data,
		DataHash:        r.DataHash,
		Reason:          r.Reason,
		TriggerType:     hierctx.TriggerType(r.TriggerType),
		AutoDelegated:   r.AutoDelegated,
		ConfidenceScore: r.ConfidenceScore,
		Processed:       r.Processed,
		Approved:        r.Approved,
		ProcessedBy:     r.ProcessedBy,
		CreatedAt:       r.CreatedAt,
		ProcessedAt:     r.ProcessedAt,
	}, nil
}

// CreateIdempotent inserts the delegation unless an identical pending one
// exists inside the dedupe window, in which case the existing record wins.
func (r *DelegationRepo) CreateIdempotent(ctx context.Context, d *hierctx.Delegation, window time.Duration) (*hierctx.Delegation, bool, error) {
	q := querier(ctx, r.db)
	cutoff := d.CreatedAt.Add(-window)
	sql, args, err := squirrel.Select("*").
		From("context_delegations").
		Where(squirrel.Eq{
			"source_level": d.SourceLevel.String(),
			"source_id":    d.SourceID.String(),
			"target_level": d.TargetLevel.String(),
			"target_id":    d.TargetID.String(),
			"data_hash":    d.DataHash,
			"processed":    false,
		}).
		Where(squirrel.GtOrEq{"created_at": cutoff}).
		OrderBy("created_at DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("building dedupe query: %w", err)
	}
	var row delegationRow
	scanErr := pgxscan.Get(ctx, q, &row, sql, args...)
	if scanErr == nil {
		existing, err := row.toDelegation()
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if !errors.Is(scanErr, pgx.ErrNoRows) {
		return nil, false, dbError("delegation dedupe check failed", scanErr)
	}
	data, err := ToJSONB(d.DelegatedData)
	if err != nil {
		return nil, false, err
	}
	sql, args, err = squirrel.Insert("context_delegations").
		SetMap(map[string]any{
			"id":               d.ID.String(),
			"source_level":     d.SourceLevel.String(),
			"source_id":        d.SourceID.String(),
			"target_level":     d.TargetLevel.String(),
			"target_id":        d.TargetID.String(),
			"delegated_data":   data,
			"data_hash":        d.DataHash,
			"reason":           d.Reason,
			"trigger_type":     string(d.TriggerType),
			"auto_delegated":   d.AutoDelegated,
			"confidence_score": d.ConfidenceScore,
			"processed":        d.Processed,
			"approved":         d.Approved,
			"processed_by":     d.ProcessedBy,
			"created_at":       d.CreatedAt,
			"processed_at":     d.ProcessedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("building insert: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return nil, false, dbError("delegation insert failed", err)
	}
	return d, true, nil
}

func (r *DelegationRepo) Get(ctx context.Context, id core.ID) (*hierctx.Delegation, error) {
	sql, args, err := squirrel.Select("*").
		From("context_delegations").
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var row delegationRow
	if err := pgxscan.Get(ctx, querier(ctx, r.db), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NotFoundError("delegation", id)
		}
		return nil, dbError("delegation lookup failed", err)
	}
	return row.toDelegation()
}

func (r *DelegationRepo) ListPending(ctx context.Context, targetLevel core.ContextLevel, limit int) ([]*hierctx.Delegation, error) {
	sb := squirrel.Select("*").
		From("context_delegations").
		Where(squirrel.Eq{"processed": false}).
		OrderBy("created_at ASC", "id ASC").
		PlaceholderFormat(squirrel.Dollar)
	if targetLevel != "" {
		sb = sb.Where(squirrel.Eq{"target_level": targetLevel.String()})
	}
	if limit > 0 {
		sb = sb.Limit(uint64(limit))
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var rows []*delegationRow
	if err := pgxscan.Select(ctx, querier(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, dbError("delegation listing failed", err)
	}
	delegations := make([]*hierctx.Delegation, 0, len(rows))
	for _, row := range rows {
		d, err := row.toDelegation()
		if err != nil {
			return nil, err
		}
		delegations = append(delegations, d)
	}
	return delegations, nil
}
