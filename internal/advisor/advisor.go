// Package advisor turns failed sync runs into plain-language
// explanations using the Anthropic API.
//
// The advisor is strictly read-only: it sees the run report and the
// error text, never the databases themselves.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rowboatdb/rowboat/internal/syncer"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// DefaultMaxTokens bounds the explanation length.
const DefaultMaxTokens = 1024

const systemPrompt = `You are a database replication assistant for rowboat,
a tool that one-way syncs SQLite databases by copying missing rows from a
source into a target. You will be shown a failed run's report and error.
Explain the most likely cause in plain language, then list the concrete
steps an operator should take, most likely fix first. Sync runs are
all-or-nothing: a failure means the target was not modified unless the
run reached the applying phase.`

// Options configures an Advisor.
type Options struct {
	// APIKey overrides the ANTHROPIC_API_KEY environment variable.
	APIKey string

	// Model selects the model. Defaults to DefaultModel.
	Model string

	// MaxTokens bounds the response. Defaults to DefaultMaxTokens.
	MaxTokens int64
}

// Advisor explains failed runs.
type Advisor struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// New creates an Advisor. The API key is read from the environment
// unless Options.APIKey is set.
func New(opts Options) *Advisor {
	var requestOpts []option.RequestOption
	if opts.APIKey != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(opts.APIKey))
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Advisor{
		client:    anthropic.NewClient(requestOpts...),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
	}
}

// Explain asks the model to explain a failed run. The report may be nil
// when the run failed before producing one.
func (a *Advisor) Explain(ctx context.Context, report *syncer.Report, errText string) (string, error) {
	prompt := BuildPrompt(report, errText)

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get explanation: %w", err)
	}

	text := collectText(message)
	if text == "" {
		return "", fmt.Errorf("model returned no text")
	}
	return text, nil
}

// BuildPrompt renders a failed run into the prompt sent to the model.
func BuildPrompt(report *syncer.Report, errText string) string {
	var b strings.Builder

	b.WriteString("A sync run failed.\n\n")
	b.WriteString("Error: ")
	if errText == "" {
		b.WriteString("(none recorded)")
	} else {
		b.WriteString(errText)
	}
	b.WriteString("\n")

	if report == nil {
		b.WriteString("\nNo run report is available; the run failed before producing one.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "\nSource: %s\n", report.Source)
	fmt.Fprintf(&b, "Target: %s\n", report.Target)
	fmt.Fprintf(&b, "Phase reached: %s\n", report.State)

	if len(report.Order) > 0 {
		fmt.Fprintf(&b, "Table order: %s\n", strings.Join(report.Order, ", "))
	}
	for _, edge := range report.Cycles {
		fmt.Fprintf(&b, "Reference cycle broken at: %s -> %s\n", edge.From, edge.To)
	}
	if len(report.Tables) > 0 {
		b.WriteString("Tables processed before the failure:\n")
		for _, tr := range report.Tables {
			fmt.Fprintf(&b, "  %s: %d row(s)\n", tr.Table, tr.Rows)
		}
	}
	fmt.Fprintf(&b, "Rows staged in total: %d\n", report.RowsTotal)

	return b.String()
}

// collectText concatenates the text blocks of a response.
func collectText(message *anthropic.Message) string {
	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
