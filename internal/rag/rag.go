// Package rag analyses retrieved snippets and derives synthetic queries that
// could plausibly have retrieved them. Everything here is deterministic.
package rag

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrNoSnippets is returned by the aggregate helpers for an empty input.
var ErrNoSnippets = errors.New("no snippets to analyse")

// Snippet is one scored unit of retrieved text.
type Snippet struct {
	Score       float64 `json:"score"`
	TextLength  int     `json:"textLength"`
	FileName    string  `json:"fileName"`
	PageLabel   int     `json:"pageLabel"`
	TextPreview string  `json:"textPreview"`
	FullText    string  `json:"fullText,omitempty"`
}

// PageRange is the inclusive span of page labels.
type PageRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Sources summarises where the snippets came from.
type Sources struct {
	UniqueFiles       []string  `json:"uniqueFiles"`
	PageRange         PageRange `json:"pageRange"`
	AverageTextLength int       `json:"averageTextLength"`
}

// Queries are the three buckets of synthetic queries.
type Queries struct {
	Broad         []string `json:"broad"`
	Specific      []string `json:"specific"`
	QuestionBased []string `json:"questionBased"`
}

// fallbackTopic stands in when no topic could be extracted at all.
const fallbackTopic = "this topic"

var headingRe = regexp.MustCompile(`#\s*([^#\n]+)`)

// Analyzer runs the heuristic with a fixed vocabulary.
type Analyzer struct {
	vocab Vocabulary
}

// NewAnalyzer returns an Analyzer; empty vocabulary fields take defaults.
func NewAnalyzer(v Vocabulary) *Analyzer {
	return &Analyzer{vocab: v.withDefaults()}
}

// ExtractTopics collects heading text and vocabulary keywords from the
// lower-cased previews, deduplicated in first-seen order and truncated to
// MaxTopics.
func (a *Analyzer) ExtractTopics(snippets []Snippet) []string {
	seen := make(map[string]struct{})
	var topics []string
	add := func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		topics = append(topics, t)
	}

	for _, s := range snippets {
		text := strings.ToLower(s.TextPreview)

		for _, m := range headingRe.FindAllStringSubmatch(text, -1) {
			heading := strings.TrimSpace(m[1])
			if utf8.RuneCountInString(heading) > 3 {
				add(heading)
			}
		}

		for _, kw := range a.vocab.Keywords {
			kw = strings.ToLower(kw)
			if strings.Contains(text, kw) {
				add(kw)
			}
		}
	}

	if len(topics) > a.vocab.MaxTopics {
		topics = topics[:a.vocab.MaxTopics]
	}
	if topics == nil {
		topics = []string{}
	}
	return topics
}

// AverageScore is the mean score rounded to three decimals.
func AverageScore(snippets []Snippet) (float64, error) {
	if len(snippets) == 0 {
		return 0, ErrNoSnippets
	}
	var sum float64
	for _, s := range snippets {
		sum += s.Score
	}
	return math.Round(sum/float64(len(snippets))*1000) / 1000, nil
}

// AnalyzeSources reports unique files, the page span and the mean text length.
func AnalyzeSources(snippets []Snippet) (Sources, error) {
	if len(snippets) == 0 {
		return Sources{}, ErrNoSnippets
	}

	src := Sources{
		UniqueFiles: []string{},
		PageRange:   PageRange{Min: snippets[0].PageLabel, Max: snippets[0].PageLabel},
	}
	seen := make(map[string]struct{})
	total := 0
	for _, s := range snippets {
		if _, ok := seen[s.FileName]; !ok {
			seen[s.FileName] = struct{}{}
			src.UniqueFiles = append(src.UniqueFiles, s.FileName)
		}
		src.PageRange.Min = min(src.PageRange.Min, s.PageLabel)
		src.PageRange.Max = max(src.PageRange.Max, s.PageLabel)
		total += s.TextLength
	}
	src.AverageTextLength = int(math.Round(float64(total) / float64(len(snippets))))
	return src, nil
}

// GenerateSyntheticQueries fills the broad, specific and question-based
// buckets from the extracted topics and the trigger list.
func (a *Analyzer) GenerateSyntheticQueries(snippets []Snippet, context string) Queries {
	topics := a.ExtractTopics(snippets)

	broad := []string{
		fmt.Sprintf("What are the requirements for %s?", strings.Join(head(topics, 2), " and ")),
		fmt.Sprintf("How do %s work together?", strings.Join(head(topics, 3), ", ")),
		fmt.Sprintf("Guidelines for %s in mortgage lending", topicOr(topics, 0, "lending")),
		fmt.Sprintf("%s eligibility criteria", topicOr(topics, 0, "Eligibility")),
	}
	if context != "" {
		broad = append(broad, context+" requirements and guidelines")
	}

	var specific []string
	seen := make(map[string]struct{})
	for _, s := range snippets {
		for _, tr := range a.vocab.Triggers {
			if tr.Contains == "" || !strings.Contains(s.TextPreview, tr.Contains) {
				continue
			}
			if _, ok := seen[tr.Query]; ok {
				continue
			}
			seen[tr.Query] = struct{}{}
			specific = append(specific, tr.Query)
		}
	}

	questionBased := []string{
		fmt.Sprintf("What information is needed for %s?", topicAt(topics, 0)),
		fmt.Sprintf("How are %s calculated or determined?", topicAt(topics, 1)),
		fmt.Sprintf("What are the limits for %s?", topicAt(topics, 2)),
		fmt.Sprintf("When do %s requirements apply?", topicAt(topics, 0)),
		fmt.Sprintf("Who qualifies for %s programs?", topicAt(topics, 1)),
	}

	return Queries{
		Broad:         head(broad, a.vocab.MaxBroad),
		Specific:      nonNil(head(specific, a.vocab.MaxSpecific)),
		QuestionBased: questionBased,
	}
}

// topicAt returns topics[i], falling back to topics[0] and then to a
// neutral placeholder.
func topicAt(topics []string, i int) string {
	if i < len(topics) {
		return topics[i]
	}
	return topicOr(topics, 0, fallbackTopic)
}

func topicOr(topics []string, i int, def string) string {
	if i < len(topics) {
		return topics[i]
	}
	return def
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Result is the full process_rag_chunks payload.
type Result struct {
	Input  Input  `json:"input"`
	Output Output `json:"output"`
}

type Input struct {
	Chunks   []Snippet     `json:"chunks"`
	Context  string        `json:"context"`
	Metadata InputMetadata `json:"metadata"`
}

type InputMetadata struct {
	ChunksProcessed int    `json:"chunksProcessed"`
	Timestamp       string `json:"timestamp"`
}

type Output struct {
	Analysis         Analysis `json:"analysis"`
	SyntheticQueries Queries  `json:"syntheticQueries"`
}

type Analysis struct {
	TopicsIdentified []string `json:"topicsIdentified"`
	AverageScore     float64  `json:"averageScore"`
	Sources          Sources  `json:"sources"`
}

// TimestampLayout matches ISO-8601 with millisecond precision in UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Process runs the whole analysis for one tool call.
func (a *Analyzer) Process(snippets []Snippet, context string, now time.Time) (*Result, error) {
	avg, err := AverageScore(snippets)
	if err != nil {
		return nil, err
	}
	sources, err := AnalyzeSources(snippets)
	if err != nil {
		return nil, err
	}

	return &Result{
		Input: Input{
			Chunks:  snippets,
			Context: context,
			Metadata: InputMetadata{
				ChunksProcessed: len(snippets),
				Timestamp:       now.UTC().Format(TimestampLayout),
			},
		},
		Output: Output{
			Analysis: Analysis{
				TopicsIdentified: a.ExtractTopics(snippets),
				AverageScore:     avg,
				Sources:          sources,
			},
			SyntheticQueries: a.GenerateSyntheticQueries(snippets, context),
		},
	}, nil
}
