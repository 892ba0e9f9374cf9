package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nidhogg/noema/internal/provider"
	"github.com/nidhogg/noema/internal/tool"
)

// registerBuiltinTools adds the small set of tools every installation has.
// Real deployments register their own on top.
func registerBuiltinTools(r *tool.Registry) {
	r.Register(provider.Tool{
		Type: "function",
		Function: provider.ToolFunction{
			Name:        "current_time",
			Description: "Returns the current local date and time.",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}, func(_ context.Context, _ string) (string, error) {
		return fmt.Sprintf(`{"time":%q}`, time.Now().Format(time.RFC3339)), nil
	})

	r.Register(provider.Tool{
		Type: "function",
		Function: provider.ToolFunction{
			Name:        "calculator",
			Description: "Adds two numbers. Parameters: a (number), b (number).",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"a": map[string]interface{}{"type": "number"},
					"b": map[string]interface{}{"type": "number"},
				},
				"required": []string{"a", "b"},
			},
		},
	}, func(_ context.Context, args string) (string, error) {
		var params struct {
			A float64 `json:"a"`
			B float64 `json:"b"`
		}
		if err := json.Unmarshal([]byte(args), &params); err != nil {
			return "", err
		}
		sum := strconv.FormatFloat(params.A+params.B, 'f', -1, 64)
		return fmt.Sprintf(`{"result": %s}`, sum), nil
	})
}
