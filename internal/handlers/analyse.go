package handlers

import (
	"context"
	"math"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/query"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// AnalyseUserStore resolves the agents a caller may analyse.
type AnalyseUserStore interface {
	ListAssignable(ctx context.Context, caller models.User) ([]models.AssignableUser, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AnalyseAssignmentStore serves the assignment aggregations.
type AnalyseAssignmentStore interface {
	CountByAgents(ctx context.Context, agentIDs []string) (map[string]int, error)
	FirstAssignedAtForAgent(ctx context.Context, agentID string) (map[int64]time.Time, error)
}

// AnalyseTaskStore serves the per-assignee task tallies.
type AnalyseTaskStore interface {
	CountByAssignees(ctx context.Context, assigneeIDs []string) (map[string]models.TaskTally, error)
}

// AnalyseActivityStore serves the activity aggregations.
type AnalyseActivityStore interface {
	CountByUserSince(ctx context.Context, userIDs []string, since time.Time) (map[string]int, error)
	FirstActivityByCompany(ctx context.Context, companyIDs []int64) (map[int64]time.Time, error)
}

// AgentChangeLogReader serves the per-agent audit view.
type AgentChangeLogReader interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ChangeLogResponse, error)
}

// AnalyseHandler serves the aggregated agent KPIs. Admins see every agent,
// teamleads only themselves and the members of teams they lead.
type AnalyseHandler struct {
	resolver    TaskAssigneeResolver
	users       AnalyseUserStore
	assignments AnalyseAssignmentStore
	tasks       AnalyseTaskStore
	activities  AnalyseActivityStore
	changeLog   AgentChangeLogReader
	logger      ectologger.Logger
}

func NewAnalyseHandler(
	resolver TaskAssigneeResolver,
	users AnalyseUserStore,
	assignments AnalyseAssignmentStore,
	tasks AnalyseTaskStore,
	activities AnalyseActivityStore,
	changeLog AgentChangeLogReader,
	logger ectologger.Logger,
) *AnalyseHandler {
	return &AnalyseHandler{
		resolver:    resolver,
		users:       users,
		assignments: assignments,
		tasks:       tasks,
		activities:  activities,
		changeLog:   changeLog,
		logger:      logger,
	}
}

// RegisterRoutes registers analyse routes
func (h *AnalyseHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/admin/analyse", h.List)
	g.GET("/admin/analyse/:agentId", h.Get)
	g.GET("/admin/analyse/:agentId/change-log", h.ChangeLog)
}

// List returns the paginated KPI overview for the caller's agents. The
// reaction-time KPI is only computed on the per-agent detail view.
func (h *AnalyseHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.AnalyseHandler.List")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}
	if !user.Role.CanViewAnalytics() {
		return Forbidden("Verboten: Nur Admins und Teamleads dürfen Statistiken einsehen.")
	}

	agents, err := h.users.ListAssignable(ctx, user)
	if err != nil {
		return err
	}

	if roleFilter, ok := models.ParseRole(c.QueryParam("role")); ok {
		filtered := agents[:0]
		for _, a := range agents {
			if a.Role == roleFilter {
				filtered = append(filtered, a)
			}
		}
		agents = filtered
	}

	page, limit := query.Clamp(QueryInt(c, "page", 1), QueryInt(c, "limit", 50))
	total := len(agents)

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	pageAgents := agents[start:end]

	ids := make([]string, len(pageAgents))
	for i, a := range pageAgents {
		ids[i] = a.ID
	}

	assignedCounts, err := h.assignments.CountByAgents(ctx, ids)
	if err != nil {
		return err
	}
	taskTallies, err := h.tasks.CountByAssignees(ctx, ids)
	if err != nil {
		return err
	}
	activityCounts, err := h.activities.CountByUserSince(ctx, ids, time.Time{})
	if err != nil {
		return err
	}

	data := make([]models.AgentKPI, len(pageAgents))
	for i, a := range pageAgents {
		tally := taskTallies[a.ID]
		data[i] = models.AgentKPI{
			AgentID:    a.ID,
			AgentName:  a.Name,
			AgentEmail: a.Email,
			AgentRole:  a.Role,
			Statistics: models.AgentStatistics{
				TotalAssigned:   assignedCounts[a.ID],
				TotalTasks:      tally.Total,
				ErledigtCount:   tally.Completed,
				OffenCount:      tally.Total - tally.Completed,
				TotalActivities: activityCounts[a.ID],
			},
		}
	}

	return SuccessResponse(c, models.AnalyseListResponse{
		Data:       data,
		Pagination: models.NewPagination(total, page, limit),
	})
}

// Get returns the full KPI set for one agent, including the average time
// from assignment to first activity.
func (h *AnalyseHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.AnalyseHandler.Get")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}
	agentID := c.Param("agentId")
	if err := h.guardAgent(ctx, user, agentID); err != nil {
		return err
	}

	agent, err := h.users.GetByID(ctx, agentID)
	if err != nil {
		return err
	}

	assignedAt, err := h.assignments.FirstAssignedAtForAgent(ctx, agentID)
	if err != nil {
		return err
	}
	taskTallies, err := h.tasks.CountByAssignees(ctx, []string{agentID})
	if err != nil {
		return err
	}
	activityCounts, err := h.activities.CountByUserSince(ctx, []string{agentID}, time.Time{})
	if err != nil {
		return err
	}

	companyIDs := make([]int64, 0, len(assignedAt))
	for id := range assignedAt {
		companyIDs = append(companyIDs, id)
	}
	firstActivity, err := h.activities.FirstActivityByCompany(ctx, companyIDs)
	if err != nil {
		return err
	}

	tally := taskTallies[agentID]
	kpi := models.AgentKPI{
		AgentID:    agent.ID,
		AgentName:  agent.Name,
		AgentEmail: agent.Email,
		AgentRole:  agent.Role,
		Statistics: models.AgentStatistics{
			TotalAssigned:    len(assignedAt),
			TotalTasks:       tally.Total,
			ErledigtCount:    tally.Completed,
			OffenCount:       tally.Total - tally.Completed,
			TotalActivities:  activityCounts[agentID],
			AvgTimeToContact: avgReactionHours(assignedAt, firstActivity),
		},
	}
	return SuccessResponse(c, kpi)
}

// ChangeLog returns the audit entries authored by the agent, newest first.
func (h *AnalyseHandler) ChangeLog(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.AnalyseHandler.ChangeLog")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}
	agentID := c.Param("agentId")
	if err := h.guardAgent(ctx, user, agentID); err != nil {
		return err
	}

	entries, err := h.changeLog.ListByUser(ctx, agentID, QueryInt(c, "limit", 100))
	if err != nil {
		return err
	}
	return SuccessResponse(c, entries)
}

func (h *AnalyseHandler) guardAgent(ctx context.Context, user models.User, agentID string) error {
	if !user.Role.CanViewAnalytics() {
		return Forbidden("Verboten: Nur Admins und Teamleads dürfen Statistiken einsehen.")
	}
	if user.Role == models.RoleAdmin {
		return nil
	}
	allowed, err := h.resolver.TaskAssignees(ctx, user)
	if err != nil {
		return err
	}
	if !ectolinq.Contains(allowed, agentID) {
		return Forbidden("Verboten: Kein Zugriff auf diesen Agenten.")
	}
	return nil
}

// avgReactionHours averages assignment-to-first-activity per company in
// hours, rounded to one decimal. Activities predating the assignment are
// skipped.
func avgReactionHours(assignedAt map[int64]time.Time, firstActivity map[int64]time.Time) *float64 {
	var sum float64
	var n int
	for companyID, assigned := range assignedAt {
		first, ok := firstActivity[companyID]
		if !ok {
			continue
		}
		diff := first.Sub(assigned).Hours()
		if diff < 0 {
			continue
		}
		sum += diff
		n++
	}
	if n == 0 {
		return nil
	}
	avg := math.Round(sum/float64(n)*10) / 10
	return &avg
}
