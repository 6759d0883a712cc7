// Package query composes role scope and caller-supplied filters into one
// SQL predicate so every listing endpoint combines them the same way.
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/scope"
)

// CompanyFilters are the recognized company-listing filters. Zero values
// mean "not supplied".
type CompanyFilters struct {
	Search       string
	Agent        string
	Team         *int64
	Project      string
	Date         string // today|week|month|quarter, on companies.created_at
	AssignedDate string // same windows, on assignments.assigned_at
	Status       string // latest-assignment status
}

// TaskFilters are the recognized task-listing filters.
type TaskFilters struct {
	Search   string
	Status   string
	Priority string
	DueDate  string // overdue|today|week|month
	Agent    string
}

// EscapeLike escapes the LIKE metacharacters %, _ and \ in s so user input
// can never act as a pattern.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// WindowStart resolves a symbolic date window to its inclusive start.
// Weeks start on Monday. Unknown keys return ok = false and the filter is
// ignored.
func WindowStart(now time.Time, window string) (time.Time, bool) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch window {
	case "today":
		return day, true
	case "week":
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset), true
	case "month":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), true
	case "quarter":
		quarterMonth := time.Month((int(now.Month())-1)/3*3 + 1)
		return time.Date(now.Year(), quarterMonth, 1, 0, 0, 0, 0, now.Location()), true
	}
	return time.Time{}, false
}

// ApplyScope restricts the query to the companies in s, where idColumn is
// the qualified company-ID column (e.g. "c.id"). Callers must handle
// s.IsEmpty() themselves before building the query; applying an empty scope
// panics because it would silently produce an unrestricted query.
func ApplyScope(sb *sqlbuilder.SelectBuilder, idColumn string, s scope.Scope) {
	if s.IsAll() {
		return
	}
	if s.IsEmpty() {
		panic("query: empty scope must short-circuit before building")
	}
	sb.Where(fmt.Sprintf("%s = ANY(%s)", idColumn, sb.Var(pq.Array(s.IDs()))))
}

// ApplyCompanyFilters adds the active company filters to sb. idColumn is the
// qualified company-ID column. The agent and team filters are OR'd together
// and AND'd with everything else.
func ApplyCompanyFilters(sb *sqlbuilder.SelectBuilder, idColumn string, f CompanyFilters, now time.Time) {
	if f.Search != "" {
		sb.Where(sb.ILike("c.name", "%"+EscapeLike(f.Search)+"%"))
	}
	if f.Project != "" {
		sb.Where(sb.Equal("c.project", f.Project))
	}
	if start, ok := WindowStart(now, f.Date); ok {
		sb.Where(sb.GreaterEqualThan("c.created_at", start))
	}
	if start, ok := WindowStart(now, f.AssignedDate); ok {
		sb.Where(fmt.Sprintf(
			"EXISTS (SELECT 1 FROM assignments fa WHERE fa.company_id = %s AND fa.assigned_at >= %s)",
			idColumn, sb.Var(start),
		))
	}

	if f.Status != "" {
		sb.Where(fmt.Sprintf(
			"EXISTS (SELECT 1 FROM assignments fa WHERE fa.company_id = %s AND fa.status = %s"+
				" AND fa.assigned_at = (SELECT MAX(fa2.assigned_at) FROM assignments fa2 WHERE fa2.company_id = %s))",
			idColumn, sb.Var(f.Status), idColumn,
		))
	}

	var routed []string
	if f.Agent != "" {
		routed = append(routed, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM assignments fa WHERE fa.company_id = %s AND fa.agent_id = %s)",
			idColumn, sb.Var(f.Agent),
		))
	}
	if f.Team != nil {
		routed = append(routed, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM assignments fa WHERE fa.company_id = %s AND fa.team_id = %s)",
			idColumn, sb.Var(*f.Team),
		))
	}
	switch len(routed) {
	case 1:
		sb.Where(routed[0])
	case 2:
		sb.Where(sb.Or(routed...))
	}
}

// ApplyTaskFilters adds the active task filters to sb. Unknown status or
// priority values are dropped rather than interpolated.
func ApplyTaskFilters(sb *sqlbuilder.SelectBuilder, f TaskFilters, now time.Time) {
	if f.Search != "" {
		pattern := "%" + EscapeLike(f.Search) + "%"
		sb.Where(sb.Or(
			sb.ILike("t.title", pattern),
			sb.ILike("c.name", pattern),
		))
	}
	if models.ValidTaskStatus(f.Status) {
		sb.Where(sb.Equal("t.status", f.Status))
	}
	if models.ValidTaskPriority(f.Priority) {
		sb.Where(sb.Equal("t.priority", f.Priority))
	}
	if f.Agent != "" {
		sb.Where(sb.Equal("t.assigned_to", f.Agent))
	}

	switch f.DueDate {
	case "overdue":
		sb.Where(sb.LessThan("t.due_date", now))
		sb.Where(sb.NotEqual("t.status", models.TaskStatusDone))
	case "today":
		start, _ := WindowStart(now, "today")
		sb.Where(sb.GreaterEqualThan("t.due_date", start))
		sb.Where(sb.LessThan("t.due_date", start.AddDate(0, 0, 1)))
	case "week":
		start, _ := WindowStart(now, "week")
		sb.Where(sb.GreaterEqualThan("t.due_date", start))
		sb.Where(sb.LessThan("t.due_date", start.AddDate(0, 0, 7)))
	case "month":
		start, _ := WindowStart(now, "month")
		sb.Where(sb.GreaterEqualThan("t.due_date", start))
		sb.Where(sb.LessThan("t.due_date", start.AddDate(0, 1, 0)))
	}
}

// Clamp normalizes 1-indexed (page, limit) to their allowed ranges.
func Clamp(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

// Paginate applies 1-indexed (page, limit) to sb and returns the clamped
// values for response metadata.
func Paginate(sb *sqlbuilder.SelectBuilder, page, limit int) (int, int) {
	page, limit = Clamp(page, limit)
	sb.Limit(limit)
	sb.Offset((page - 1) * limit)
	return page, limit
}
