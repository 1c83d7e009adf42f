package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/vestigolabs/vestigo/internal/interfaces"
	"github.com/vestigolabs/vestigo/internal/models"
	"github.com/vestigolabs/vestigo/internal/services/llm"
)

// taskSynthesis is the JSON object the model is asked to return per task.
type taskSynthesis struct {
	Summary   string            `json:"summary"`
	Findings  []string          `json:"findings"`
	Gaps      []string          `json:"gaps"`
	Citations []models.Citation `json:"citations"`
}

// synthesizeTask turns collected evidence into a task result, via the LLM
// when available, otherwise via the deterministic template.
func (s *Service) synthesizeTask(ctx context.Context, subject models.Subject, task models.ResearchTask, evidence []*models.EvidencePage) models.TaskResult {
	result := models.TaskResult{
		TaskID:   task.ID,
		TaskName: task.Name,
		Evidence: evidence,
	}

	if s.llm != nil && s.llm.Enabled() {
		if synthesis, err := s.synthesizeViaLLM(ctx, subject, task, evidence); err == nil {
			result.Summary = synthesis.Summary
			result.Findings = synthesis.Findings
			result.Gaps = synthesis.Gaps
			result.Citations = boundCitations(synthesis.Citations, evidence)
			result.UsedLLM = true
			return result
		} else {
			s.logger.Warn().Err(err).Str("task", task.Name).Msg("Task synthesis failed, using template output")
		}
	}

	templated := templateSynthesis(subject, task, evidence)
	result.Summary = templated.Summary
	result.Findings = templated.Findings
	result.Gaps = templated.Gaps
	result.Citations = templated.Citations
	return result
}

func (s *Service) synthesizeViaLLM(ctx context.Context, subject models.Subject, task models.ResearchTask, evidence []*models.EvidencePage) (*taskSynthesis, error) {
	var excerpts strings.Builder
	for i, page := range evidence {
		fmt.Fprintf(&excerpts, "[%d] %s (%s)\n%s\n\n", i+1, page.Title, page.URL, page.Excerpt)
	}
	if excerpts.Len() == 0 {
		excerpts.WriteString("(no evidence pages were collected)\n")
	}

	prompt := fmt.Sprintf(
		"Subject: %s\nObjective: %s\n\nEvidence:\n%s\nWrite a JSON object with keys: summary (2-3 sentences), findings (list of specific facts with no speculation), gaps (what the evidence does not answer), citations (list of {title, url} drawn only from the evidence above).",
		subject.Name, task.Objective, excerpts.String(),
	)

	response, err := s.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: "You are a careful research analyst. Respond only with JSON."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, err
	}

	var synthesis taskSynthesis
	if err := llm.ExtractJSON(response, &synthesis); err != nil {
		return nil, err
	}
	if strings.TrimSpace(synthesis.Summary) == "" {
		return nil, fmt.Errorf("synthesis returned empty summary")
	}
	return &synthesis, nil
}

// templateSynthesis is the deterministic fallback used when the LLM is
// disabled or fails.
func templateSynthesis(subject models.Subject, task models.ResearchTask, evidence []*models.EvidencePage) taskSynthesis {
	synthesis := taskSynthesis{}

	name := subject.Name
	if name == "" {
		name = subject.URL
	}

	if len(evidence) == 0 {
		synthesis.Summary = fmt.Sprintf("No evidence was collected for the %s inquiry into %s.", task.Name, name)
		synthesis.Gaps = []string{fmt.Sprintf("no pages matched the %s inquiry", task.Name)}
		return synthesis
	}

	synthesis.Summary = fmt.Sprintf("Collected %d pages for the %s inquiry into %s; review the cited sources for detail.", len(evidence), task.Name, name)
	for i, page := range evidence {
		if i >= 5 {
			break
		}
		finding := page.Title
		if finding == "" {
			finding = page.URL
		}
		if page.Excerpt != "" {
			finding = finding + ": " + page.Excerpt
		}
		synthesis.Findings = append(synthesis.Findings, finding)
		synthesis.Citations = append(synthesis.Citations, models.Citation{Title: page.Title, URL: page.URL})
	}
	synthesis.Gaps = []string{"automated summary only; no analyst synthesis was performed"}
	return synthesis
}

// boundCitations drops model-invented citations that do not point at a
// collected evidence page, falling back to the evidence itself when the
// model cited nothing usable.
func boundCitations(cited []models.Citation, evidence []*models.EvidencePage) []models.Citation {
	known := make(map[string]bool, len(evidence))
	for _, page := range evidence {
		known[page.URL] = true
	}

	var bounded []models.Citation
	for _, citation := range cited {
		if known[citation.URL] {
			bounded = append(bounded, citation)
		}
	}
	if len(bounded) > 0 {
		return bounded
	}

	for _, page := range evidence {
		bounded = append(bounded, models.Citation{Title: page.Title, URL: page.URL})
	}
	return bounded
}

// synthesizeReport produces the top-level narrative across all tasks.
func (s *Service) synthesizeReport(ctx context.Context, subject models.Subject, results []models.TaskResult) string {
	if s.llm != nil && s.llm.Enabled() {
		var summaries strings.Builder
		for _, result := range results {
			fmt.Fprintf(&summaries, "%s: %s\n", result.TaskName, result.Summary)
		}

		response, err := s.llm.Chat(ctx, []interfaces.Message{
			{Role: "system", Content: "You are a careful research analyst."},
			{Role: "user", Content: fmt.Sprintf("Subject: %s\n\nTask summaries:\n%s\nWrite a single-paragraph executive synthesis. State only what the summaries support.", subject.Name, summaries.String())},
		})
		if err == nil && strings.TrimSpace(response) != "" {
			return strings.TrimSpace(response)
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("Report synthesis failed, using template output")
		}
	}

	// Template aggregate: one line per task.
	var lines []string
	for _, result := range results {
		lines = append(lines, fmt.Sprintf("%s: %s", result.TaskName, result.Summary))
	}
	return strings.Join(lines, "\n")
}
