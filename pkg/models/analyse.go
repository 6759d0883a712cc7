package models

// TaskTally is the per-assignee task count pair.
type TaskTally struct {
	Total     int
	Completed int
}

// AgentStatistics are the aggregated KPIs for one agent. AvgTimeToContact is
// hours from assignment to the agent's first activity on the company, nil
// when no activity exists yet.
type AgentStatistics struct {
	TotalAssigned    int      `json:"totalAssigned"`
	TotalTasks       int      `json:"totalTasks"`
	ErledigtCount    int      `json:"erledigtCount"`
	OffenCount       int      `json:"offenCount"`
	TotalActivities  int      `json:"totalActivities"`
	AvgTimeToContact *float64 `json:"avgTimeToContact"`
}

// AgentKPI pairs an agent with their statistics.
type AgentKPI struct {
	AgentID    string          `json:"agentId"`
	AgentName  string          `json:"agentName"`
	AgentEmail string          `json:"agentEmail"`
	AgentRole  Role            `json:"agentRole"`
	Statistics AgentStatistics `json:"statistics"`
}

// AnalyseListResponse pairs the page of agent KPIs with pagination metadata.
type AnalyseListResponse struct {
	Data       []AgentKPI `json:"data"`
	Pagination Pagination `json:"pagination"`
}
