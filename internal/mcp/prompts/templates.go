package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	pageReviewPrompt     = "page_review"
	sectionTriagePrompt  = "section_triage"
	anomalyExplainPrompt = "explain_anomalies"
)

type PromptTemplates struct{}

func NewPromptTemplates() *PromptTemplates {
	return &PromptTemplates{}
}

func (p *PromptTemplates) PageReviewPrompt() mcp.Prompt {
	return mcp.NewPrompt(
		pageReviewPrompt,
		mcp.WithPromptDescription("Review one page's search and behavior report and suggest improvements"),
		mcp.WithArgument("url", mcp.ArgumentDescription("Canonical page URL or site path"), mcp.RequiredArgument()),
		mcp.WithArgument("audience", mcp.ArgumentDescription("Who the page serves, e.g. residents or businesses")),
	)
}

func (p *PromptTemplates) SectionTriagePrompt() mcp.Prompt {
	return mcp.NewPrompt(
		sectionTriagePrompt,
		mcp.WithPromptDescription("Rank a set of pages by priority score and pick the ones to work on first"),
		mcp.WithArgument("urls", mcp.ArgumentDescription("Comma-separated page URLs or paths"), mcp.RequiredArgument()),
	)
}

func (p *PromptTemplates) ExplainAnomaliesPrompt() mcp.Prompt {
	return mcp.NewPrompt(
		anomalyExplainPrompt,
		mcp.WithPromptDescription("Explain the anomaly flags raised for a page in plain language"),
		mcp.WithArgument("url", mcp.ArgumentDescription("Canonical page URL or site path"), mcp.RequiredArgument()),
	)
}

func (p *PromptTemplates) PageReviewHandler(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := request.Params.Arguments
	url := getArgString(args, "url")
	audience := getArgString(args, "audience")
	if audience == "" {
		audience = "general visitors"
	}

	text := fmt.Sprintf("Call the reconcile_page tool for %s. Using its report, summarise how the page performs in search and how visitors behave once they arrive. "+
		"Compare each metric with the benchmarks in the report, call out any anomaly flags, and suggest up to three concrete changes for an audience of %s.", url, audience)

	return userPrompt("Review a page report", text), nil
}

func (p *PromptTemplates) SectionTriageHandler(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	urls := splitList(getArgString(request.Params.Arguments, "urls"))

	text := fmt.Sprintf("Call the reconcile_pages tool with these pages:\n%s\n\nSort the reports by priority score, highest first. "+
		"For the top five, state the priority level, the main reason from the score breakdown, and whether either source was not found.", strings.Join(urls, "\n"))

	return userPrompt("Triage a set of pages by priority", text), nil
}

func (p *PromptTemplates) ExplainAnomaliesHandler(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	url := getArgString(request.Params.Arguments, "url")

	text := fmt.Sprintf("Call the reconcile_page tool for %s and read its anomalies list. "+
		"For each flag, explain what the query data shows and what an editor could check next. If the list is empty, say so.", url)

	return userPrompt("Explain anomaly flags for a page", text), nil
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(text),
			},
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getArgString(args map[string]string, key string) string {
	if args == nil {
		return ""
	}
	return strings.TrimSpace(args[key])
}
