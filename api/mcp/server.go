// Package mcp exposes the planning engine as MCP tools so an agent can
// drive intake, assignment and optimization over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kilianp07/fieldplan/core/model"
	"github.com/kilianp07/fieldplan/core/planning"
)

// Version is reported in the MCP handshake.
const Version = "0.1.0"

// NewServer registers every planning tool on a new MCP server.
func NewServer(o *planning.Orchestrator) *server.MCPServer {
	s := server.NewMCPServer("fieldplan", Version)

	// Intake
	s.AddTool(mcp.NewTool("create_technician",
		mcp.WithDescription("Register a technician. E-mail must be unique."),
		mcp.WithString("name", mcp.Description("Full name"), mcp.Required()),
		mcp.WithString("email", mcp.Description("E-mail address"), mcp.Required()),
		mcp.WithString("skills", mcp.Description("Comma separated skills, e.g. 'electricity,plumbing'")),
		mcp.WithString("location", mcp.Description("Home zone")),
		mcp.WithNumber("capacity_hours", mcp.Description("Weekly capacity in hours (defaults to 40)")),
	), createTechnicianHandler(o))

	s.AddTool(mcp.NewTool("list_technicians",
		mcp.WithDescription("List all technicians."),
	), listTechniciansHandler(o))

	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a PENDING task."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithNumber("duration_minutes", mcp.Description("Estimated duration, 15 to 480 minutes"), mcp.Required()),
		mcp.WithString("required_skills", mcp.Description("Comma separated required skills")),
		mcp.WithString("priority", mcp.Description("LOW|MEDIUM|HIGH|URGENT (defaults to MEDIUM)")),
		mcp.WithString("location", mcp.Description("Task zone")),
		mcp.WithString("description", mcp.Description("Free text description")),
	), createTaskHandler(o))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks, newest first."),
		mcp.WithString("status", mcp.Description("Filter by status (PENDING|ASSIGNED|IN_PROGRESS|DONE|CANCELLED)")),
	), listTasksHandler(o))

	// Planning
	s.AddTool(mcp.NewTool("auto_assign",
		mcp.WithDescription("Assign a pending task to the best qualified technician."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("preferred_start", mcp.Description("RFC3339 start time (defaults to now)")),
	), autoAssignHandler(o))

	s.AddTool(mcp.NewTool("assign_manually",
		mcp.WithDescription("Assign a pending task to a given technician at a given time."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("technician_id", mcp.Description("Technician ID"), mcp.Required()),
		mcp.WithString("start", mcp.Description("RFC3339 start time"), mcp.Required()),
	), assignManuallyHandler(o))

	s.AddTool(mcp.NewTool("reassign",
		mcp.WithDescription("Cancel the current assignment of a task and assign it again."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
	), taskOp(o.Reassign))

	s.AddTool(mcp.NewTool("optimize",
		mcp.WithDescription("Run automatic assignment over every pending task, most urgent first."),
	), optimizeHandler(o))

	s.AddTool(mcp.NewTool("detect_conflicts",
		mcp.WithDescription("Sweep the plan for urgent unassigned tasks, overloaded technicians and tasks nobody can do."),
	), detectConflictsHandler(o))

	s.AddTool(mcp.NewTool("export_schedule",
		mcp.WithDescription("Get the planned assignments of a technician."),
		mcp.WithString("technician_id", mcp.Description("Technician ID"), mcp.Required()),
	), technicianOp(o.Schedule))

	s.AddTool(mcp.NewTool("send_schedule",
		mcp.WithDescription("Publish the schedule of a technician to their device."),
		mcp.WithString("technician_id", mcp.Description("Technician ID"), mcp.Required()),
	), technicianOp(o.SendSchedule))

	s.AddTool(mcp.NewTool("availability",
		mcp.WithDescription("Committed and remaining hours of a technician this week."),
		mcp.WithString("technician_id", mcp.Description("Technician ID"), mcp.Required()),
	), technicianOp(o.Availability))

	// Lifecycle
	s.AddTool(mcp.NewTool("start_assignment",
		mcp.WithDescription("Mark a planned assignment as started."),
		mcp.WithString("assignment_id", mcp.Description("Assignment ID"), mcp.Required()),
	), assignmentOp(o.StartAssignment))

	s.AddTool(mcp.NewTool("complete_assignment",
		mcp.WithDescription("Mark a started assignment as done."),
		mcp.WithString("assignment_id", mcp.Description("Assignment ID"), mcp.Required()),
	), assignmentOp(o.CompleteAssignment))

	s.AddTool(mcp.NewTool("cancel_assignment",
		mcp.WithDescription("Cancel an assignment and return its task to PENDING."),
		mcp.WithString("assignment_id", mcp.Description("Assignment ID"), mcp.Required()),
	), assignmentOp(o.CancelAssignment))

	s.AddTool(mcp.NewTool("cancel_task",
		mcp.WithDescription("Cancel a pending or assigned task."),
		mcp.WithString("task_id", mcp.Description("Task ID"), mcp.Required()),
	), taskOp(o.CancelTask))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func jsonResult(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func createTechnicianHandler(o *planning.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(o.CreateTechnician(ctx, planning.NewTechnician{
			Name:          mcp.ParseString(request, "name", ""),
			Email:         mcp.ParseString(request, "email", ""),
			Skills:        splitList(mcp.ParseString(request, "skills", "")),
			Location:      mcp.ParseString(request, "location", ""),
			CapacityHours: mcp.ParseFloat64(request, "capacity_hours", 0),
		}))
	}
}

func listTechniciansHandler(o *planning.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := o.ListTechnicians(ctx)
		return jsonResult(map[string]any{"technicians": list}, err)
	}
}

func createTaskHandler(o *planning.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prio, err := model.ParsePriority(mcp.ParseString(request, "priority", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(o.CreateTask(ctx, planning.NewTask{
			Title:           mcp.ParseString(request, "title", ""),
			Description:     mcp.ParseString(request, "description", ""),
			RequiredSkills:  splitList(mcp.ParseString(request, "required_skills", "")),
			Location:        mcp.ParseString(request, "location", ""),
			DurationMinutes: mcp.ParseInt(request, "duration_minutes", 0),
			Priority:        prio,
		}))
	}
}

func listTasksHandler(o *planning.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := model.TaskStatus(strings.ToUpper(mcp.ParseString(request, "status", "")))
		list, err := o.ListTasks(ctx, status)
		return jsonResult(map[string]any{"tasks": list}, err)
	}
}

func autoAssignHandler(o *planning.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var preferred *time.Time
		if s := mcp.ParseString(request, "preferred_start", ""); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid preferred_start: %v", err)), nil
			}
			preferred = &t
		}
		return jsonResult(o.AutoAssign(ctx, mcp.ParseString(request, "task_id", ""), preferred))
	}
}

func assignManuallyHandler(o *planning.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start, err := time.Parse(time.RFC3339, mcp.ParseString(request, "start", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid start: %v", err)), nil
		}
		return jsonResult(o.AssignManually(ctx,
			mcp.ParseString(request, "task_id", ""),
			mcp.ParseString(request, "technician_id", ""),
			start))
	}
}

func optimizeHandler(o *planning.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(o.Optimize(ctx))
	}
}

func detectConflictsHandler(o *planning.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(o.DetectConflicts(ctx))
	}
}

func taskOp[T any](op func(context.Context, string) (T, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(op(ctx, mcp.ParseString(request, "task_id", "")))
	}
}

func technicianOp[T any](op func(context.Context, string) (T, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(op(ctx, mcp.ParseString(request, "technician_id", "")))
	}
}

func assignmentOp(op func(context.Context, string) (model.Assignment, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(op(ctx, mcp.ParseString(request, "assignment_id", "")))
	}
}
