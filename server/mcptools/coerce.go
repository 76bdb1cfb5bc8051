package mcptools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

// Remote agents send parameters loosely typed: ints as strings, booleans
// as "yes"/"off", lists as CSV. The coercion layer normalizes them before
// dispatch and answers with field-level guidance when it cannot.

const (
	minLimit = 1
	maxLimit = 100
)

// coerceLimit accepts an int or an integer-shaped string within 1..100.
// Floats and out-of-range values are rejected, never clamped.
func coerceLimit(raw any) (int, error) {
	if raw == nil {
		return 0, nil
	}
	reject := func(actual any) error {
		return core.NewError(core.CodeValidationError, "limit must be an integer within 1..100",
			map[string]any{
				"field":    "limit",
				"expected": "integer 1..100",
				"actual":   actual,
				"hint":     "pass limit as a whole number, e.g. 20",
			})
	}
	var limit int
	switch v := raw.(type) {
	case int:
		limit = v
	case int64:
		limit = int(v)
	case float64:
		if v != float64(int(v)) {
			return 0, reject(v)
		}
		limit = int(v)
	case string:
		trimmed := strings.TrimSpace(v)
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, reject(v)
		}
		limit = parsed
	default:
		return 0, reject(fmt.Sprintf("%T", raw))
	}
	if limit < minLimit || limit > maxLimit {
		return 0, reject(limit)
	}
	return limit, nil
}

// coerceBool maps common textual booleans. Unrecognized values coerce to
// false and produce a warning instead of an error.
func coerceBool(raw any) (value bool, warning string) {
	switch v := raw.(type) {
	case nil:
		return false, ""
	case bool:
		return v, ""
	case float64:
		return v != 0, ""
	case int:
		return v != 0, ""
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on", "enabled":
			return true, ""
		case "false", "0", "no", "off", "disabled", "":
			return false, ""
		default:
			return false, fmt.Sprintf("unrecognized boolean value %q treated as false", v)
		}
	default:
		return false, fmt.Sprintf("unrecognized boolean value of type %T treated as false", raw)
	}
}

// coerceStringList accepts a JSON list, a JSON-array string, a CSV string
// or a single scalar, and returns the flattened list.
func coerceStringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, core.NewError(core.CodeValidationError,
					"list items must be strings", map[string]any{
						"expected": "list of strings",
						"actual":   fmt.Sprintf("%T", item),
					})
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, nil
		}
		if strings.HasPrefix(trimmed, "[") {
			var parsed []string
			if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
				return parsed, nil
			}
		}
		if strings.Contains(trimmed, ",") {
			parts := strings.Split(trimmed, ",")
			out := make([]string, 0, len(parts))
			for _, part := range parts {
				if p := strings.TrimSpace(part); p != "" {
					out = append(out, p)
				}
			}
			return out, nil
		}
		return []string{trimmed}, nil
	default:
		return nil, core.NewError(core.CodeValidationError,
			"expected a list, a JSON array string, or a comma-separated string", map[string]any{
				"actual": fmt.Sprintf("%T", raw),
			})
	}
}

func coerceIDList(raw any) ([]core.ID, error) {
	strs, err := coerceStringList(raw)
	if err != nil {
		return nil, err
	}
	ids := make([]core.ID, len(strs))
	for i, s := range strs {
		ids[i] = core.ID(s)
	}
	return ids, nil
}

// stringArg reads an optional string parameter.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// stringPtrArg reads a string parameter distinguishing absent from empty.
func stringPtrArg(args map[string]any, key string) *string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return &s
		}
	}
	return nil
}

// requiredArg reads a mandatory string parameter.
func requiredArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", core.NewError(core.CodeMissingField,
			fmt.Sprintf("%s is required", key), map[string]any{
				"field": key,
			})
	}
	return v, nil
}

// intPtrArg reads an optional integer parameter, accepting int-shaped
// strings and floats without a fraction.
func intPtrArg(args map[string]any, key string) (*int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	reject := func(actual any) error {
		return core.NewError(core.CodeValidationError,
			fmt.Sprintf("%s must be an integer", key), map[string]any{
				"field":    key,
				"expected": "integer",
				"actual":   actual,
			})
	}
	switch v := raw.(type) {
	case int:
		return &v, nil
	case float64:
		if v != float64(int(v)) {
			return nil, reject(v)
		}
		n := int(v)
		return &n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, reject(v)
		}
		return &n, nil
	default:
		return nil, reject(fmt.Sprintf("%T", raw))
	}
}

// mapArg reads an optional object parameter, also accepting a JSON object
// string.
func mapArg(args map[string]any, key string) (map[string]any, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, nil
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
			return nil, core.NewError(core.CodeInvalidFormat,
				fmt.Sprintf("%s must be an object or a JSON object string", key), map[string]any{
					"field":  key,
					"actual": v,
					"hint":   "pass a JSON object, e.g. {\"key\": \"value\"}",
				})
		}
		return parsed, nil
	default:
		return nil, core.NewError(core.CodeValidationError,
			fmt.Sprintf("%s must be an object", key), map[string]any{
				"field":  key,
				"actual": fmt.Sprintf("%T", raw),
			})
	}
}

// validateArgKeys rejects argument maps carrying keys outside the
// action's parameter set, naming the offending field.
func validateArgKeys(args map[string]any, allowed map[string]bool) error {
	for key := range args {
		if !allowed[key] {
			return core.NewError(core.CodeValidationError,
				fmt.Sprintf("unknown field %q", key), map[string]any{
					"field":    key,
					"expected": argNames(allowed),
				})
		}
	}
	return nil
}

func argNames(allowed map[string]bool) []string {
	names := make([]string, 0, len(allowed))
	for name := range allowed {
		names = append(names, name)
	}
	return names
}

// unknownAction builds the rejection for an unsupported tool action,
// listing the valid ones.
func unknownAction(tool, action string, valid []string) error {
	return core.NewError(core.CodeValidationError,
		fmt.Sprintf("unknown action %q for %s", action, tool), map[string]any{
			"field":         "action",
			"actual":        action,
			"valid_actions": valid,
		})
}
