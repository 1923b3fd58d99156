// Package snapshot exports laid-out graphs for the configured scopes as
// JSONL on a schedule, feeding offline dashboards and audit archives.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/deptexhq/deptex/internal/canvas"
)

// Source builds the renderable graph for a scope.
type Source interface {
	GraphForScope(ctx context.Context, scope string) (*canvas.Graph, error)
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version    string    `json:"version"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	ScopeCount int       `json:"scope_count"`
	GraphCount int       `json:"graph_count"`
	NodeCount  int       `json:"node_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type  string      `json:"type"`
	Scope string      `json:"scope"`
	Data  interface{} `json:"data"`
}

// buildError is the Data payload of an "error" record.
type buildError struct {
	Error string `json:"error"`
}

// ExportJSONL writes one record per scope to w, preceded by a header.
// A scope whose graph cannot be built gets an "error" record instead of
// failing the whole export; the header counts only built graphs.
func ExportJSONL(ctx context.Context, source Source, scopes []string, w io.Writer) error {
	records := make([]record, 0, len(scopes))
	graphs := 0
	nodes := 0

	for _, scope := range scopes {
		graph, err := source.GraphForScope(ctx, scope)
		if err != nil {
			records = append(records, record{
				Type:  "error",
				Scope: scope,
				Data:  buildError{Error: err.Error()},
			})
			continue
		}
		graphs++
		nodes += len(graph.Nodes)
		records = append(records, record{Type: "graph", Scope: scope, Data: graph})
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:    "1",
		Type:       "header",
		Timestamp:  time.Now().UTC(),
		ScopeCount: len(scopes),
		GraphCount: graphs,
		NodeCount:  nodes,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode scope %s: %w", rec.Scope, err)
		}
	}

	return nil
}
