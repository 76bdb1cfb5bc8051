package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/agent"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/branch"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/project"
)

// -----------------------------------------------------------------------------
// Projects
// -----------------------------------------------------------------------------

type ProjectRepo struct {
	db DBInterface
}

func NewProjectRepo(db DBInterface) *ProjectRepo {
	return &ProjectRepo{db: db}
}

type projectRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Status      string    `db:"status"`
	UserID      string    `db:"user_id"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *projectRow) toProject() *project.Project {
	return &project.Project{
		ID:          core.ID(r.ID),
		Name:        r.Name,
		Description: r.Description,
		Status:      project.Status(r.Status),
		UserID:      r.UserID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func projectValues(p *project.Project) map[string]any {
	return map[string]any{
		"id":          p.ID.String(),
		"name":        p.Name,
		"description": p.Description,
		"status":      string(p.Status),
		"user_id":     p.UserID,
		"created_at":  p.CreatedAt,
		"updated_at":  p.UpdatedAt,
	}
}

func (r *ProjectRepo) Get(ctx context.Context, id core.ID) (*project.Project, error) {
	sql, args, err := squirrel.Select("*").
		From("projects").
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var row projectRow
	if err := pgxscan.Get(ctx, querier(ctx, r.db), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NotFoundError("project", id)
		}
		return nil, dbError("project lookup failed", err)
	}
	return row.toProject(), nil
}

func (r *ProjectRepo) Create(ctx context.Context, p *project.Project) error {
	sql, args, err := squirrel.Insert("projects").
		SetMap(projectValues(p)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if _, err := querier(ctx, r.db).Exec(ctx, sql, args...); err != nil {
		return dbError("project insert failed", err)
	}
	return nil
}

func (r *ProjectRepo) Update(ctx context.Context, id core.ID, p *project.Project) error {
	values := projectValues(p)
	delete(values, "id")
	delete(values, "created_at")
	sql, args, err := squirrel.Update("projects").
		SetMap(values).
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	tag, err := querier(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return dbError("project update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundError("project", id)
	}
	return nil
}

func (r *ProjectRepo) Delete(ctx context.Context, id core.ID) error {
	sql, args, err := squirrel.Delete("projects").
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	tag, err := querier(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return dbError("project delete failed", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundError("project", id)
	}
	return nil
}

func (r *ProjectRepo) Exists(ctx context.Context, id core.ID) (bool, error) {
	return existsIn(ctx, querier(ctx, r.db), "projects", squirrel.Eq{"id": id.String()})
}

func (r *ProjectRepo) List(ctx context.Context, filter *project.Filter) ([]*project.Project, error) {
	sb := squirrel.Select("*").
		From("projects").
		OrderBy("created_at ASC", "id ASC").
		PlaceholderFormat(squirrel.Dollar)
	if filter != nil {
		if filter.Status != nil {
			sb = sb.Where(squirrel.Eq{"status": string(*filter.Status)})
		}
		if filter.UserID != nil {
			sb = sb.Where(squirrel.Eq{"user_id": *filter.UserID})
		}
		if filter.Limit > 0 {
			sb = sb.Limit(uint64(filter.Limit))
		}
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var rows []*projectRow
	if err := pgxscan.Select(ctx, querier(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, dbError("project listing failed", err)
	}
	projects := make([]*project.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, row.toProject())
	}
	return projects, nil
}

// -----------------------------------------------------------------------------
// Branches
// -----------------------------------------------------------------------------

type BranchRepo struct {
	db DBInterface
}

func NewBranchRepo(db DBInterface) *BranchRepo {
	return &BranchRepo{db: db}
}

type branchRow struct {
	ID                 string    `db:"id"`
	ProjectID          string    `db:"project_id"`
	Name               string    `db:"name"`
	Description        string    `db:"description"`
	AssignedAgentID    string    `db:"assigned_agent_id"`
	Status             string    `db:"status"`
	Priority           string    `db:"priority"`
	TaskCount          int       `db:"task_count"`
	CompletedTaskCount int       `db:"completed_task_count"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r *branchRow) toBranch() *branch.Branch {
	return &branch.Branch{
		ID:                 core.ID(r.ID),
		ProjectID:          core.ID(r.ProjectID),
		Name:               r.Name,
		Description:        r.Description,
		AssignedAgentID:    core.ID(r.AssignedAgentID),
		Status:             branch.Status(r.Status),
		Priority:           core.Priority(r.Priority),
		TaskCount:          r.TaskCount,
		CompletedTaskCount: r.CompletedTaskCount,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func branchValues(b *branch.Branch) map[string]any {
	return map[string]any{
		"id":                   b.ID.String(),
		"project_id":           b.ProjectID.String(),
		"name":                 b.Name,
		"description":          b.Description,
		"assigned_agent_id":    b.AssignedAgentID.String(),
		"status":               string(b.Status),
		"priority":             b.Priority.String(),
		"task_count":           b.TaskCount,
		"completed_task_count": b.CompletedTaskCount,
		"created_at":           b.CreatedAt,
		"updated_at":           b.UpdatedAt,
	}
}

func (r *BranchRepo) Get(ctx context.Context, id core.ID) (*branch.Branch, error) {
	sql, args, err := squirrel.Select("*").
		From("branches").
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var row branchRow
	if err := pgxscan.Get(ctx, querier(ctx, r.db), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NotFoundError("branch", id)
		}
		return nil, dbError("branch lookup failed", err)
	}
	return row.toBranch(), nil
}

func (r *BranchRepo) Create(ctx context.Context, b *branch.Branch) error {
	sql, args, err := squirrel.Insert("branches").
		SetMap(branchValues(b)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if _, err := querier(ctx, r.db).Exec(ctx, sql, args...); err != nil {
		return dbError("branch insert failed", err)
	}
	return nil
}

func (r *BranchRepo) Update(ctx context.Context, id core.ID, b *branch.Branch) error {
	values := branchValues(b)
	delete(values, "id")
	delete(values, "created_at")
	sql, args, err := squirrel.Update("branches").
		SetMap(values).
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	tag, err := querier(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return dbError("branch update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundError("branch", id)
	}
	return nil
}

func (r *BranchRepo) Delete(ctx context.Context, id core.ID) error {
	sql, args, err := squirrel.Delete("branches").
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	tag, err := querier(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return dbError("branch delete failed", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundError("branch", id)
	}
	return nil
}

func (r *BranchRepo) Exists(ctx context.Context, id core.ID) (bool, error) {
	return existsIn(ctx, querier(ctx, r.db), "branches", squirrel.Eq{"id": id.String()})
}

func (r *BranchRepo) List(ctx context.Context, filter *branch.Filter) ([]*branch.Branch, error) {
	sb := squirrel.Select("*").
		From("branches").
		OrderBy("created_at ASC", "id ASC").
		PlaceholderFormat(squirrel.Dollar)
	if filter != nil {
		if filter.ProjectID != nil {
			sb = sb.Where(squirrel.Eq{"project_id": filter.ProjectID.String()})
		}
		if filter.Status != nil {
			sb = sb.Where(squirrel.Eq{"status": string(*filter.Status)})
		} else if !filter.IncludeArchived {
			sb = sb.Where(squirrel.NotEq{"status": string(branch.StatusArchived)})
		}
		if filter.AssignedAgentID != nil {
			sb = sb.Where(squirrel.Eq{"assigned_agent_id": filter.AssignedAgentID.String()})
		}
		if filter.Limit > 0 {
			sb = sb.Limit(uint64(filter.Limit))
		}
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var rows []*branchRow
	if err := pgxscan.Select(ctx, querier(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, dbError("branch listing failed", err)
	}
	branches := make([]*branch.Branch, 0, len(rows))
	for _, row := range rows {
		branches = append(branches, row.toBranch())
	}
	return branches, nil
}

// -----------------------------------------------------------------------------
// Agents
// -----------------------------------------------------------------------------

type AgentRepo struct {
	db DBInterface
}

func NewAgentRepo(db DBInterface) *AgentRepo {
	return &AgentRepo{db: db}
}

type agentRow struct {
	ID                  string    `db:"id"`
	Name                string    `db:"name"`
	Description         string    `db:"description"`
	Capabilities        []byte    `db:"capabilities"`
	Status              string    `db:"status"`
	MaxConcurrentTasks  int       `db:"max_concurrent_tasks"`
	CurrentWorkload     int       `db:"current_workload"`
	AssignedProjects    []byte    `db:"assigned_projects"`
	AssignedTrees       []byte    `db:"assigned_trees"`
	ActiveTasks         []byte    `db:"active_tasks"`
	CompletedTasks      int       `db:"completed_tasks"`
	AverageTaskDuration float64   `db:"average_task_duration"`
	SuccessRate         float64   `db:"success_rate"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func (r *agentRow) toAgent() (*agent.Agent, error) {
	var caps []string
	if err := FromJSONB(r.Capabilities, &caps); err != nil {
		return nil, fmt.Errorf("decoding capabilities: %w", err)
	}
	capabilities := make([]core.Capability, len(caps))
	for i, c := range caps {
		capabilities[i] = core.Capability(c)
	}
	assignedProjects, err := idsFromJSONB(r.AssignedProjects)
	if err != nil {
		return nil, fmt.Errorf("decoding assigned projects: %w", err)
	}
	assignedTrees, err := idsFromJSONB(r.AssignedTrees)
	if err != nil {
		return nil, fmt.Errorf("decoding assigned trees: %w", err)
	}
	activeTasks, err := idsFromJSONB(r.ActiveTasks)
	if err != nil {
		return nil, fmt.Errorf("decoding active tasks: %w", err)
	}
	return &agent.Agent{
		ID:                  core.ID(r.ID),
		Name:                r.Name,
		Description:         r.Description,
		Capabilities:        capabilities,
		Status:              core.AgentStatus(r.Status),
		MaxConcurrentTasks:  r.MaxConcurrentTasks,
		CurrentWorkload:     r.CurrentWorkload,
		AssignedProjects:    assignedProjects,
		AssignedTrees:       assignedTrees,
		ActiveTasks:         activeTasks,
		CompletedTasks:      r.CompletedTasks,
		AverageTaskDuration: r.AverageTaskDuration,
		SuccessRate:         r.SuccessRate,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}, nil
}

func agentValues(a *agent.Agent) (map[string]any, error) {
	caps := make([]string, len(a.Capabilities))
	for i, c := range a.Capabilities {
		caps[i] = c.String()
	}
	capabilities, err := ToJSONB(caps)
	if err != nil {
		return nil, err
	}
	assignedProjects, err := idsToJSONB(a.AssignedProjects)
	if err != nil {
		return nil, err
	}
	assignedTrees, err := idsToJSONB(a.AssignedTrees)
	if err != nil {
		return nil, err
	}
	activeTasks, err := idsToJSONB(a.ActiveTasks)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":                    a.ID.String(),
		"name":                  a.Name,
		"description":           a.Description,
		"capabilities":          capabilities,
		"status":                a.Status.String(),
		"max_concurrent_tasks":  a.MaxConcurrentTasks,
		"current_workload":      a.CurrentWorkload,
		"assigned_projects":     assignedProjects,
		"assigned_trees":        assignedTrees,
		"active_tasks":          activeTasks,
		"completed_tasks":       a.CompletedTasks,
		"average_task_duration": a.AverageTaskDuration,
		"success_rate":          a.SuccessRate,
		"created_at":            a.CreatedAt,
		"updated_at":            a.UpdatedAt,
	}, nil
}

func (r *AgentRepo) Get(ctx context.Context, id core.ID) (*agent.Agent, error) {
	sql, args, err := squirrel.Select("*").
		From("agents").
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var row agentRow
	if err := pgxscan.Get(ctx, querier(ctx, r.db), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NotFoundError("agent", id)
		}
		return nil, dbError("agent lookup failed", err)
	}
	return row.toAgent()
}

func (r *AgentRepo) Create(ctx context.Context, a *agent.Agent) error {
	values, err := agentValues(a)
	if err != nil {
		return err
	}
	sql, args, err := squirrel.Insert("agents").
		SetMap(values).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if _, err := querier(ctx, r.db).Exec(ctx, sql, args...); err != nil {
		return dbError("agent insert failed", err)
	}
	return nil
}

func (r *AgentRepo) Update(ctx context.Context, id core.ID, a *agent.Agent) error {
	values, err := agentValues(a)
	if err != nil {
		return err
	}
	delete(values, "id")
	delete(values, "created_at")
	sql, args, err := squirrel.Update("agents").
		SetMap(values).
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	tag, err := querier(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return dbError("agent update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundError("agent", id)
	}
	return nil
}

func (r *AgentRepo) Delete(ctx context.Context, id core.ID) error {
	sql, args, err := squirrel.Delete("agents").
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	tag, err := querier(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return dbError("agent delete failed", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundError("agent", id)
	}
	return nil
}

func (r *AgentRepo) Exists(ctx context.Context, id core.ID) (bool, error) {
	return existsIn(ctx, querier(ctx, r.db), "agents", squirrel.Eq{"id": id.String()})
}

func (r *AgentRepo) List(ctx context.Context, filter *agent.Filter) ([]*agent.Agent, error) {
	sb := squirrel.Select("*").
		From("agents").
		OrderBy("created_at ASC", "id ASC").
		PlaceholderFormat(squirrel.Dollar)
	if filter != nil {
		if filter.Status != nil {
			sb = sb.Where(squirrel.Eq{"status": filter.Status.String()})
		}
		if filter.ProjectID != nil {
			sb = sb.Where("assigned_projects @> ?", fmt.Sprintf(`["%s"]`, filter.ProjectID))
		}
		if filter.Limit > 0 {
			sb = sb.Limit(uint64(filter.Limit))
		}
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var rows []*agentRow
	if err := pgxscan.Select(ctx, querier(ctx, r.db), &rows, sql, args...); err != nil {
		return nil, dbError("agent listing failed", err)
	}
	agents := make([]*agent.Agent, 0, len(rows))
	for _, row := range rows {
		a, err := row.toAgent()
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}

// -----------------------------------------------------------------------------
// Shared helpers
// -----------------------------------------------------------------------------

func existsIn(ctx context.Context, q DBInterface, table string, cond squirrel.Eq) (bool, error) {
	sql, args, err := squirrel.Select("1").
		From(table).
		Where(cond).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building query: %w", err)
	}
	var one int
	if err := pgxscan.Get(ctx, q, &one, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, dbError("existence check failed", err)
	}
	return true, nil
}

func dbError(message string, err error) error {
	return core.NewError(core.CodeDatabaseError, message, map[string]any{
		"cause": err.Error(),
	})
}
