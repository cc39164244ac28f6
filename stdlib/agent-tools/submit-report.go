package agent_tools

import (
	"context"

	"github.com/d0rc/scribe-agents/agency"
	"github.com/tidwall/gjson"
)

// SubmitReport ends the loop. Sources without url or title are dropped;
// with RequireSources set, a report left with no sources is rejected.
type SubmitReport struct {
	RequireSources bool
}

func (s *SubmitReport) Name() string {
	return "submit-report"
}

func (s *SubmitReport) ContextDescription() string {
	return "use it to deliver the solution with all the useful details and the pages it is based on"
}

func (s *SubmitReport) Arguments() []agency.Argument {
	return []agency.Argument{
		{Name: "answer", Type: agency.ArgString, Required: true, Description: "the final answer"},
		{Name: "sources", Type: agency.ArgArray, Required: s.RequireSources, Description: `list of {"url": "...", "title": "..."}`},
	}
}

func (s *SubmitReport) Submit(_ context.Context, args gjson.Result) (*agency.AgentResponse, error) {
	response, err := agency.SanitizeResponse(agency.SubmissionFromArgs(args))
	if err != nil {
		return nil, err
	}
	if s.RequireSources && len(response.Sources) == 0 {
		return nil, &agency.SubmissionValidationError{Reason: "no source with both url and title"}
	}

	return response, nil
}
