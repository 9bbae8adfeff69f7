// Package prompt renders the system prompt for a configured agent.
package prompt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"fabrikmcp/internal/agentconfig"
	"fabrikmcp/internal/rag"
)

const closing = "Answer the user's question following the workflow and output requirements above. " +
	"If the contextual information does not cover the question, say so rather than guessing."

// Build renders the system prompt for cfg, embedding snippets as context.
// The output depends only on its inputs.
func Build(cfg *agentconfig.Config, snippets []rag.Snippet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s.", cfg.Agent.Name)
	if cfg.Agent.Description != "" {
		fmt.Fprintf(&b, " %s", cfg.Agent.Description)
	}
	b.WriteString("\n")

	if cfg.Guidance.SystemPromptTemplate != "" {
		b.WriteString("\n")
		b.WriteString(cfg.Guidance.SystemPromptTemplate)
		b.WriteString("\n")
	}

	b.WriteString("\n## Workflow\n")
	if cfg.Workflow.Description != "" {
		b.WriteString(cfg.Workflow.Description)
		b.WriteString("\n")
	}
	for i, step := range cfg.Workflow.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, stepText(step))
	}

	b.WriteString("\n## Output Requirements\n")
	fmt.Fprintf(&b, "- Expected format: %s\n", cfg.Output.ExpectedFormat)
	if cfg.Output.NaturalLanguageFormat != "" {
		fmt.Fprintf(&b, "- Style: %s\n", cfg.Output.NaturalLanguageFormat)
	}
	fmt.Fprintf(&b, "- Records to produce when generating synthetic data: %s\n",
		strconv.FormatFloat(cfg.Output.SyntheticRecordsCount, 'f', -1, 64))

	if len(cfg.Guidance.Rules) > 0 {
		b.WriteString("\n## Guidelines\n")
		for _, r := range cfg.Guidance.Rules {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	if len(snippets) > 0 {
		b.WriteString("\n## Contextual Information\n")
		for i, s := range snippets {
			fmt.Fprintf(&b, "[%d] %s (page %d, relevance %.3f)\n", i+1, s.FileName, s.PageLabel, s.Score)
			b.WriteString(s.TextPreview)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(closing)

	return b.String()
}

// stepText renders a workflow step. Steps are usually strings; anything else
// is shown as compact JSON.
func stepText(step any) string {
	if s, ok := step.(string); ok {
		return s
	}
	raw, err := json.Marshal(step)
	if err != nil {
		return fmt.Sprintf("%v", step)
	}
	return string(raw)
}
