package agentconfig

import (
	"github.com/ohler55/ojg/jp"

	"fabrikmcp/internal/rag"
)

// Canonical field names. Each one is resolved through sources.
const (
	fieldAgentName             = "agent.name"
	fieldAgentDescription      = "agent.description"
	fieldWorkflowSteps         = "workflow.steps"
	fieldWorkflowDescription   = "workflow.description"
	fieldNaturalLanguageFormat = "output.naturalLanguageFormat"
	fieldExpectedFormat        = "output.expectedFormat"
	fieldSyntheticRecordsCount = "output.syntheticRecordsCount"
	fieldRAGChunks             = "ragChunks"
	fieldSystemPromptTemplate  = "guidance.systemPromptTemplate"
	fieldRules                 = "guidance.rules"
)

// Defaults for fields no source provides.
const (
	DefaultAgentName             = "Unknown Agent"
	DefaultExpectedFormat        = "json"
	DefaultSyntheticRecordsCount = 10.0
)

// sources lists, per canonical field, the accepted upstream paths in
// precedence order. The first present value wins.
var sources = map[string][]jp.Expr{
	fieldAgentName:             paths("$.agent.name", "$.agentName"),
	fieldAgentDescription:      paths("$.agent.description", "$.description"),
	fieldWorkflowSteps:         paths("$.workflow.steps", "$.workflowSteps"),
	fieldWorkflowDescription:   paths("$.workflow.description", "$.workflowDescription"),
	fieldNaturalLanguageFormat: paths("$.output.naturalLanguageFormat", "$.naturalLanguageOutput"),
	fieldExpectedFormat:        paths("$.output.expectedFormat", "$.expectedFormat"),
	fieldSyntheticRecordsCount: paths("$.output.syntheticRecordsCount", "$.numberOfSyntheticRecords"),
	fieldRAGChunks:             paths("$.ragChunks", "$.chunks"),
	fieldSystemPromptTemplate:  paths("$.systemPromptTemplate", "$.agent.systemPrompt"),
	fieldRules:                 paths("$.complianceRules", "$.rules"),
}

func paths(p ...string) []jp.Expr {
	exprs := make([]jp.Expr, len(p))
	for i, s := range p {
		exprs[i] = jp.MustParseString(s)
	}
	return exprs
}

// first returns the first value under field that accept reports as present.
func first(data any, field string, accept func(any) bool) (any, bool) {
	for _, x := range sources[field] {
		for _, v := range x.Get(data) {
			if accept(v) {
				return v, true
			}
		}
	}
	return nil, false
}

func isString(v any) bool {
	s, ok := v.(string)
	return ok && s != ""
}

func isNumber(v any) bool {
	f, ok := toFloat(v)
	return ok && f != 0
}

func isArray(v any) bool {
	_, ok := v.([]any)
	return ok
}

func stringField(data any, field, def string) string {
	if v, ok := first(data, field, isString); ok {
		return v.(string)
	}
	return def
}

// numberField keeps fractions as given.
func numberField(data any, field string, def float64) float64 {
	if v, ok := first(data, field, isNumber); ok {
		f, _ := toFloat(v)
		return f
	}
	return def
}

func arrayField(data any, field string) []any {
	if v, ok := first(data, field, isArray); ok {
		return v.([]any)
	}
	return []any{}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// normalize maps an arbitrary upstream document onto the canonical shape.
func normalize(data any) (Agent, Workflow, Output, Guidance, []any) {
	agent := Agent{
		Name:        stringField(data, fieldAgentName, DefaultAgentName),
		Description: stringField(data, fieldAgentDescription, ""),
	}
	workflow := Workflow{
		Steps:       arrayField(data, fieldWorkflowSteps),
		Description: stringField(data, fieldWorkflowDescription, ""),
	}
	output := Output{
		NaturalLanguageFormat: stringField(data, fieldNaturalLanguageFormat, ""),
		ExpectedFormat:        stringField(data, fieldExpectedFormat, DefaultExpectedFormat),
		SyntheticRecordsCount: numberField(data, fieldSyntheticRecordsCount, DefaultSyntheticRecordsCount),
	}
	guidance := Guidance{
		SystemPromptTemplate: stringField(data, fieldSystemPromptTemplate, ""),
		Rules:                []string{},
	}
	for _, r := range arrayField(data, fieldRules) {
		if s, ok := r.(string); ok && s != "" {
			guidance.Rules = append(guidance.Rules, s)
		}
	}
	return agent, workflow, output, guidance, arrayField(data, fieldRAGChunks)
}

// Snippets decodes the embedded RAG chunks leniently. Entries that are not
// objects or carry no preview text are dropped; mistyped fields are zeroed.
func (c *Config) Snippets() []rag.Snippet {
	var out []rag.Snippet
	for _, raw := range c.RAGChunks {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		s := rag.Snippet{
			FileName:    stringOf(m["fileName"]),
			TextPreview: stringOf(m["textPreview"]),
			FullText:    stringOf(m["fullText"]),
		}
		if s.TextPreview == "" {
			continue
		}
		s.Score, _ = toFloat(m["score"])
		if f, ok := toFloat(m["textLength"]); ok {
			s.TextLength = int(f)
		}
		if f, ok := toFloat(m["pageLabel"]); ok {
			s.PageLabel = int(f)
		}
		out = append(out, s)
	}
	return out
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}
