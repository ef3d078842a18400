package plugins

import (
	"fmt"

	"github.com/kernelmesh/kernelmesh/core"
	"github.com/kernelmesh/kernelmesh/plugin"
)

// NewStatePlugin builds the "state" plugin giving models read/write access to
// session state and session-scoped artifacts. State writes are staged on the
// invocation context and committed by the kernel after the call succeeds.
func NewStatePlugin() *plugin.Plugin {
	getState := plugin.NewNativeFunction(
		"get_state",
		"Read a value from session state by key",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{"type": "string", "description": "State key to read"},
			},
			"required": []string{"key"},
		},
		func(ictx *core.InvocationContext, args map[string]any) (any, error) {
			key := args["key"].(string)
			value, exists := ictx.GetState(key)
			return map[string]any{"key": key, "exists": exists, "value": value}, nil
		},
	)

	setState := plugin.NewNativeFunction(
		"set_state",
		"Write a value into session state",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key":   map[string]any{"type": "string", "description": "State key to write"},
				"value": map[string]any{"description": "Value to store (any JSON type)"},
			},
			"required": []string{"key"},
		},
		func(ictx *core.InvocationContext, args map[string]any) (any, error) {
			key := args["key"].(string)
			ictx.SetState(key, args["value"])
			return map[string]any{"key": key, "value": args["value"]}, nil
		},
	)

	saveArtifact := plugin.NewNativeFunction(
		"save_artifact",
		"Store text content as a session artifact",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"artifact_id": map[string]any{"type": "string", "description": "Artifact identifier"},
				"content":     map[string]any{"type": "string", "description": "Text content to store"},
			},
			"required": []string{"artifact_id", "content"},
		},
		func(ictx *core.InvocationContext, args map[string]any) (any, error) {
			id := args["artifact_id"].(string)
			content := args["content"].(string)
			if err := ictx.SaveArtifact(id, []byte(content)); err != nil {
				return nil, fmt.Errorf("failed to save artifact %q: %w", id, err)
			}
			return map[string]any{"artifact_id": id, "size": len(content)}, nil
		},
	)

	loadArtifact := plugin.NewNativeFunction(
		"load_artifact",
		"Load a previously stored session artifact",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"artifact_id": map[string]any{"type": "string", "description": "Artifact identifier"},
			},
			"required": []string{"artifact_id"},
		},
		func(ictx *core.InvocationContext, args map[string]any) (any, error) {
			id := args["artifact_id"].(string)
			data, err := ictx.GetArtifact(id)
			if err != nil {
				return nil, fmt.Errorf("failed to load artifact %q: %w", id, err)
			}
			return map[string]any{"artifact_id": id, "content": string(data), "size": len(data)}, nil
		},
	)

	listArtifacts := plugin.NewNativeFunction(
		"list_artifacts",
		"List the artifact identifiers stored in this session",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ictx *core.InvocationContext, _ map[string]any) (any, error) {
			ids, err := ictx.ListArtifacts()
			if err != nil {
				return nil, err
			}
			return map[string]any{"artifacts": ids, "count": len(ids)}, nil
		},
	)

	return plugin.MustNew(
		"state",
		"Session state and artifact management",
		getState, setState, saveArtifact, loadArtifact, listArtifacts,
	)
}
