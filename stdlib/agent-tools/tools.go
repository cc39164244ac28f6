package agent_tools

import (
	"github.com/d0rc/scribe-agents/agency"
	"github.com/d0rc/scribe-agents/search"
	"github.com/d0rc/scribe-agents/tools"
)

/*

   Available tools:

   - web-search - searches the web, args: "query";
   - browse-site - reads a page as markdown, args: "url", "question";
   - write-note - stores text under a section, args: "section", "text";
   - read-note - reads a section back, args: "section";
   - list-notes - lists sections;
   - submit-report - delivers the answer with its sources, args: "answer", "sources".

*/

// GetToolsSelection returns every ordinary tool except the excluded ones.
// Notes share one notebook. reducer may be nil.
func GetToolsSelection(searcher search.Searcher, maxResults int, reducer *tools.DocumentReducer, exclude []string) []agency.AgentTool {
	notebook := NewNotebook()
	browse := NewBrowseSite(nil)
	browse.Reducer = reducer
	allTools := []agency.AgentTool{
		NewWebSearch(searcher, maxResults),
		browse,
		&WriteNote{Notebook: notebook},
		&ReadNote{Notebook: notebook},
		&ListNotes{Notebook: notebook},
	}

	resultingTools := make([]agency.AgentTool, 0, len(allTools))
	for _, tool := range allTools {
		if !contains(exclude, tool.Name()) {
			resultingTools = append(resultingTools, tool)
		}
	}

	return resultingTools
}

// NewResearchToolset is the toolset of the search agents: the selected
// tools plus submit-report.
func NewResearchToolset(searcher search.Searcher, maxResults int, reducer *tools.DocumentReducer, submit *SubmitReport, exclude ...string) (*agency.Toolset, error) {
	if submit == nil {
		submit = &SubmitReport{}
	}

	return agency.NewToolset(submit, GetToolsSelection(searcher, maxResults, reducer, exclude)...)
}

func contains(exclude []string, name string) bool {
	for _, item := range exclude {
		if item == name {
			return true
		}
	}

	return false
}
