package models

import (
	"time"
)

// ResearchTask is one bounded line of inquiry within a research run
type ResearchTask struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	Objective      string   `json:"objective"`
	Keywords       []string `json:"keywords"`
	QueryTemplates []string `json:"query_templates"` // %s is replaced with the subject name
	SiteScoped     bool     `json:"site_scoped"`     // also issue a site:domain query when the subject has a URL
}

// Citation points a finding back at an evidence page
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// TaskResult is the outcome of a single research task. Failed tasks still
// produce a result with an explanatory gap and no evidence.
type TaskResult struct {
	TaskID    int             `json:"task_id"`
	TaskName  string          `json:"task_name"`
	Summary   string          `json:"summary"`
	Findings  []string        `json:"findings"`
	Gaps      []string        `json:"gaps"`
	Citations []Citation      `json:"citations"`
	Evidence  []*EvidencePage `json:"evidence,omitempty"`
	UsedLLM   bool            `json:"used_llm"`
	Error     string          `json:"error,omitempty"`
	Elapsed   time.Duration   `json:"elapsed"`
}

// ResearchReport aggregates all task results for a subject
type ResearchReport struct {
	RunID     string        `json:"run_id"`
	Subject   Subject       `json:"subject"`
	Tasks     []TaskResult  `json:"tasks"`
	Synthesis string        `json:"synthesis"`
	Citations []Citation    `json:"citations"`
	UsedLLM   bool          `json:"used_llm"`
	Elapsed   time.Duration `json:"elapsed"`
	CreatedAt time.Time     `json:"created_at"`
}
