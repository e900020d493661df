// Package mcpserver exposes the correction service as MCP tools so that
// agents can request grammar feedback over stdio.
//
// Tools:
//   - "correct_text": runs the full pipeline and returns the markdown reply
//     as text content and the structured result as structured content.
//   - "diff_text": renders the word diff between two texts.
package mcpserver

import (
	"context"
	"errors"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/lingobot/internal/correction"
	"github.com/MrWong99/lingobot/internal/correction/diffreport"
	"github.com/MrWong99/lingobot/internal/correction/rules"
	"github.com/MrWong99/lingobot/internal/observe"
	"github.com/MrWong99/lingobot/internal/reply"
	"github.com/MrWong99/lingobot/pkg/provider/classifier"
)

// SurfaceMCP labels the reply metric for tool calls.
const SurfaceMCP = "mcp"

// CorrectArgs is the input of the "correct_text" tool.
type CorrectArgs struct {
	Text string `json:"text" jsonschema:"the sentence or short paragraph to check"`
}

// CorrectOutput is the structured output of the "correct_text" tool.
type CorrectOutput struct {
	Original     string               `json:"original"`
	Spellchecked string               `json:"spellchecked"`
	Final        string               `json:"final"`
	Diff         string               `json:"diff"`
	Feedback     []rules.Feedback     `json:"feedback"`
	Sentiment    classifier.Sentiment `json:"sentiment"`
	Emotions     map[string]float64   `json:"emotions,omitempty"`
	Reply        string               `json:"reply"`
}

func newCorrectOutput(res *correction.Result) CorrectOutput {
	return CorrectOutput{
		Original:     res.Original,
		Spellchecked: res.Spellchecked,
		Final:        res.Final,
		Diff:         res.Diff,
		Feedback:     res.Feedback,
		Sentiment:    res.Sentiment,
		Emotions:     res.Emotions,
		Reply:        reply.Format(res),
	}
}

// DiffArgs is the input of the "diff_text" tool.
type DiffArgs struct {
	Before string `json:"before" jsonschema:"the original text"`
	After  string `json:"after" jsonschema:"the corrected text"`
}

// DiffOutput is the structured output of the "diff_text" tool.
type DiffOutput struct {
	Diff     string               `json:"diff"`
	Segments []diffreport.Segment `json:"segments"`
}

// New returns an MCP server with the correction tools registered.
func New(svc *reply.Service, version string, metrics *observe.Metrics) *mcpsdk.Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "lingobot", Version: version}, nil)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "correct_text",
		Description: "Check English text for spelling and grammar problems. Returns the corrected text, a word diff and rule feedback.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, in CorrectArgs) (*mcpsdk.CallToolResult, CorrectOutput, error) {
		res, err := svc.Analyze(ctx, in.Text)
		if errors.Is(err, reply.ErrEmptyInput) {
			return nil, CorrectOutput{}, errors.New("text must not be empty")
		}
		if err != nil {
			observe.Logger(ctx).Error("mcpserver: analysis failed", "err", err)
			return nil, CorrectOutput{}, errors.New(reply.ErrorMessage(err))
		}
		metrics.RecordReply(ctx, SurfaceMCP)

		out := newCorrectOutput(res)
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out.Reply}},
		}, out, nil
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "diff_text",
		Description: "Render a word-level diff between two texts: deletions as ~~word~~, insertions as **word**.",
	}, func(_ context.Context, _ *mcpsdk.CallToolRequest, in DiffArgs) (*mcpsdk.CallToolResult, DiffOutput, error) {
		out := DiffOutput{
			Diff:     diffreport.Report(in.Before, in.After),
			Segments: diffreport.Segments(in.Before, in.After),
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out.Diff}},
		}, out, nil
	})

	return server
}

// RunStdio serves the tools over stdin/stdout until ctx is cancelled or the
// client disconnects.
func RunStdio(ctx context.Context, server *mcpsdk.Server) error {
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}
