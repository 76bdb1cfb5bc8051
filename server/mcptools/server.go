package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/guidance"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/hierctx"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/infra/repo"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/config"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/logger"
)

const serverVersion = "1.0.0"

// Server exposes the task orchestration engine over MCP. Every tool
// invocation is dispatched to a use case and wrapped in the uniform
// response envelope, with workflow guidance attached on the way out.
type Server struct {
	repos    repo.Provider
	contexts *hierctx.Service
	cfg      *config.Config
	now      func() time.Time
	mcp      *server.MCPServer
}

func NewServer(repos repo.Provider, contexts *hierctx.Service, cfg *config.Config) *Server {
	s := &Server{
		repos:    repos,
		contexts: contexts,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.mcp = server.NewMCPServer(
		"dhafnck-mcp",
		serverVersion,
		server.WithRecovery(),
		server.WithLogging(),
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("manage_task",
		mcp.WithDescription("Task lifecycle operations: create, update, get, list, search, next, complete, delete, dependencies."),
		mcp.WithString("action", mcp.Required(), mcp.Description("One of: create, update, get, list, search, next, complete, delete, add_dependency, remove_dependency.")),
	), s.withTimeout(s.handleManageTask))
	s.mcp.AddTool(mcp.NewTool("manage_subtask",
		mcp.WithDescription("Subtask operations under a parent task: add, update, complete, remove, get, list."),
		mcp.WithString("action", mcp.Required(), mcp.Description("One of: add, update, complete, remove, get, list (create and delete are accepted aliases).")),
	), s.withTimeout(s.handleManageSubtask))
	s.mcp.AddTool(mcp.NewTool("manage_context",
		mcp.WithDescription("Hierarchical context operations across global, project, branch and task levels."),
		mcp.WithString("action", mcp.Required(), mcp.Description("One of: create, get, update, delete, resolve, delegate, add_insight, add_progress, list.")),
	), s.withTimeout(s.handleManageContext))
	s.mcp.AddTool(mcp.NewTool("manage_project",
		mcp.WithDescription("Project operations: create, get, list, update, delete, health_check."),
		mcp.WithString("action", mcp.Required(), mcp.Description("One of: create, get, list, update, delete, health_check.")),
	), s.withTimeout(s.handleManageProject))
	s.mcp.AddTool(mcp.NewTool("manage_git_branch",
		mcp.WithDescription("Branch (task tree) operations: create, get, list, update, delete, assign_agent, unassign_agent, get_statistics, archive, restore."),
		mcp.WithString("action", mcp.Required(), mcp.Description("One of: create, get, list, update, delete, assign_agent, unassign_agent, get_statistics, archive, restore.")),
	), s.withTimeout(s.handleManageBranch))
	s.mcp.AddTool(mcp.NewTool("manage_agent",
		mcp.WithDescription("Agent registry operations: register, unregister, get, list, update, assign, unassign, rebalance."),
		mcp.WithString("action", mcp.Required(), mcp.Description("One of: register, unregister, get, list, update, assign, unassign, rebalance.")),
	), s.withTimeout(s.handleManageAgent))
}

type toolHandler func(ctx context.Context, args map[string]any) *core.Response

// withTimeout bounds the invocation by the configured operation timeout
// and serializes the envelope into the MCP result.
func (s *Server) withTimeout(h toolHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		timeout := time.Duration(s.cfg.Server.OperationTimeoutSeconds) * time.Second
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		resp := h(ctx, req.GetArguments())
		raw, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("marshaling response envelope: %w", err)
		}
		return mcp.NewToolResultText(string(raw)), nil
	}
}

func (s *Server) guidanceFlags() guidance.Flags {
	return guidance.Flags{
		Enabled:  s.cfg.Vision.Enabled && s.cfg.Vision.WorkflowHints.Enabled,
		MaxHints: s.cfg.Vision.WorkflowHints.MaxHints,
	}
}

// fail builds and enhances a failure envelope.
func (s *Server) fail(operation string, err error) *core.Response {
	resp := core.NewErrorResponse(operation, err)
	guidance.EnhanceError(resp)
	return resp
}

// succeed builds a success or partial_success envelope and attaches the
// workflow guidance.
func (s *Server) succeed(
	operation string,
	data map[string]any,
	partial []core.PartialFailure,
	gIn guidance.Input,
) *core.Response {
	var resp *core.Response
	if len(partial) > 0 {
		resp = core.NewPartialResponse(operation, data, partial)
	} else {
		resp = core.NewSuccessResponse(operation, data)
	}
	gIn.Operation = ruleKey(operation)
	guidance.Enhance(resp, gIn, s.guidanceFlags())
	return resp
}

// ruleKey maps an envelope operation like "manage_task.create" onto the
// guidance rule table key "create_task".
func ruleKey(operation string) string {
	tool, action, found := strings.Cut(operation, ".")
	if !found {
		return operation
	}
	switch tool {
	case "manage_task":
		return action + "_task"
	case "manage_context":
		return action + "_context"
	default:
		return operation
	}
}

// ServeStdio blocks serving the MCP protocol over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	logger.FromContext(ctx).Info("serving MCP over stdio")
	return server.ServeStdio(s.mcp)
}

// ServeSSE exposes the MCP server over SSE behind a gin router, together
// with the health endpoint.
func (s *Server) ServeSSE(ctx context.Context) error {
	log := logger.FromContext(ctx)
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	sseServer := server.NewSSEServer(s.mcp,
		server.WithBaseURL(fmt.Sprintf("http://%s", addr)),
	)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": serverVersion,
		})
	})
	router.Any("/sse", gin.WrapH(sseServer.SSEHandler()))
	router.Any("/message", gin.WrapH(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shutdown SSE server", "error", err)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shutdown HTTP server", "error", err)
		}
	}()
	log.Info("serving MCP over SSE", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
