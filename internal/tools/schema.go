package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const snippetSchema = `{
	"type": "object",
	"properties": {
		"score": {"type": "number", "description": "Relevance score"},
		"textLength": {"type": "integer", "minimum": 0, "maximum": 2147483647, "description": "Length of the full text"},
		"fileName": {"type": "string", "description": "Source document"},
		"pageLabel": {"type": "integer", "minimum": 0, "maximum": 2147483647, "description": "Page number in the source document"},
		"textPreview": {"type": "string", "description": "Preview of the chunk text"},
		"fullText": {"type": "string", "description": "Full chunk text (optional)"}
	},
	"required": ["score", "textLength", "fileName", "pageLabel", "textPreview"]
}`

var (
	echoSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"text": {"type": "string", "description": "Text to echo back"}
	},
	"required": ["text"]
}`)

	addSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"a": {"type": "number", "description": "First number"},
		"b": {"type": "number", "description": "Second number"}
	},
	"required": ["a", "b"]
}`)

	processRAGChunksSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"chunks": {
			"type": "array",
			"description": "Retrieved RAG chunks to analyse",
			"minItems": 1,
			"items": ` + snippetSchema + `
		},
		"context": {
			"type": "string",
			"description": "Additional context about the query domain (optional)",
			"default": ""
		}
	},
	"required": ["chunks"]
}`)

	getAgentConfigSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"apiUrl": {"type": "string", "format": "uri", "description": "API endpoint URL to fetch configuration from"},
		"agentId": {"type": "string", "description": "Optional agent ID to specify which agent config to fetch"},
		"headers": {
			"type": "object",
			"description": "Optional HTTP headers for the API request",
			"additionalProperties": {"type": "string"}
		}
	},
	"required": ["apiUrl"]
}`)

	geminiWithConfigSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"configId": {"type": "string", "minLength": 1, "description": "Agent configuration id, appended to the API URL"},
		"userQuery": {"type": "string", "minLength": 1, "description": "Question to send to Gemini"},
		"apiUrl": {"type": "string", "format": "uri", "description": "Configuration API base URL (optional)"},
		"ragChunks": {
			"type": "array",
			"description": "RAG chunks to include as context; defaults to the chunks in the configuration",
			"items": ` + snippetSchema + `
		}
	},
	"required": ["configId", "userQuery"]
}`)
)

// FieldError is one offending argument.
type FieldError struct {
	Path   string
	Reason string
}

// InvalidParamsError reports every argument that failed validation.
type InvalidParamsError struct {
	Tool   string
	Fields []FieldError
}

func (e *InvalidParamsError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Path + ": " + f.Reason
	}
	return "Invalid parameters: " + strings.Join(parts, ", ")
}

// validator checks tool arguments against the tool's input schema.
type validator struct {
	tool   string
	schema *jsonschema.Schema
}

func mustCompile(tool string, raw json.RawMessage) *validator {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	url := tool + ".json"
	if err := compiler.AddResource(url, strings.NewReader(string(raw))); err != nil {
		panic(fmt.Sprintf("tool %s: bad schema: %v", tool, err))
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("tool %s: bad schema: %v", tool, err))
	}
	return &validator{tool: tool, schema: schema}
}

// validate returns nil or an *InvalidParamsError.
func (v *validator) validate(args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	err := v.schema.Validate(args)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &InvalidParamsError{Tool: v.tool, Fields: []FieldError{{Path: "(root)", Reason: err.Error()}}}
	}

	var fields []FieldError
	collect(ve, &fields)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Path < fields[j].Path })
	return &InvalidParamsError{Tool: v.tool, Fields: fields}
}

var missingRe = regexp.MustCompile(`'([^']*)'`)

// collect walks to the leaf causes and turns them into field errors.
func collect(ve *jsonschema.ValidationError, out *[]FieldError) {
	if len(ve.Causes) > 0 {
		for _, c := range ve.Causes {
			collect(c, out)
		}
		return
	}

	path := pointerToPath(ve.InstanceLocation)
	if strings.HasPrefix(ve.Message, "missing properties") {
		for _, m := range missingRe.FindAllStringSubmatch(ve.Message, -1) {
			*out = append(*out, FieldError{Path: joinPath(path, m[1]), Reason: "Required"})
		}
		return
	}
	if path == "" {
		path = "(root)"
	}
	*out = append(*out, FieldError{Path: path, Reason: ve.Message})
}

// pointerToPath turns "/chunks/0/score" into "chunks.0.score".
func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	segs := strings.Split(ptr, "/")
	for i, s := range segs {
		s = strings.ReplaceAll(s, "~1", "/")
		segs[i] = strings.ReplaceAll(s, "~0", "~")
	}
	return strings.Join(segs, ".")
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
