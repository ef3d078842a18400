package plugins

import (
	"fmt"

	"github.com/kernelmesh/kernelmesh/core"
	"github.com/kernelmesh/kernelmesh/memory"
	"github.com/kernelmesh/kernelmesh/plugin"
)

// NewMemoryPlugin builds the "memory" plugin backed by a semantic store.
// Models can persist facts and recall them later by similarity. The
// collection scopes all entries; use one collection per assistant or tenant.
func NewMemoryPlugin(store *memory.SemanticStore, collection string) *plugin.Plugin {
	save := plugin.NewNativeFunction(
		"save",
		"Store a piece of information in long-term memory",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{"type": "string", "description": "Information to remember"},
				"id":      map[string]any{"type": "string", "description": "Optional stable identifier; omit to generate one"},
			},
			"required": []string{"content"},
		},
		func(ictx *core.InvocationContext, args map[string]any) (any, error) {
			content := args["content"].(string)
			id, _ := args["id"].(string)
			if id == "" {
				id = core.NewID()
			}
			var meta []map[string]any
			if ictx.SessionID != "" {
				meta = []map[string]any{{"session_id": ictx.SessionID}}
			}
			if err := store.Save(ictx.Context, collection, []string{id}, []string{content}, meta); err != nil {
				return nil, fmt.Errorf("failed to save memory: %w", err)
			}
			return map[string]any{"id": id}, nil
		},
	)

	recall := plugin.NewNativeFunction(
		"recall",
		"Search long-term memory for information related to a query",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "What to look for"},
				"limit": map[string]any{"type": "integer", "description": "Maximum number of results (default 5)"},
			},
			"required": []string{"query"},
		},
		func(ictx *core.InvocationContext, args map[string]any) (any, error) {
			query := args["query"].(string)
			limit := 5
			if l, ok := args["limit"].(float64); ok && l > 0 {
				limit = int(l)
			}
			matches, err := store.Recall(ictx.Context, collection, query, limit)
			if err != nil {
				return nil, fmt.Errorf("failed to recall memory: %w", err)
			}
			results := make([]map[string]any, len(matches))
			for i, m := range matches {
				results[i] = map[string]any{"id": m.ID, "text": m.Text, "score": m.Score}
			}
			return map[string]any{"query": query, "count": len(results), "results": results}, nil
		},
	)

	return plugin.MustNew("memory", "Long-term semantic memory", save, recall)
}
