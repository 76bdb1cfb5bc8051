package mcptools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

func TestCoerceLimit(t *testing.T) {
	t.Run("Should accept integers and integer-shaped strings within range", func(t *testing.T) {
		cases := []struct {
			raw  any
			want int
		}{
			{1, 1},
			{100, 100},
			{float64(20), 20},
			{"20", 20},
			{" 42 ", 42},
			{nil, 0},
		}
		for _, tc := range cases {
			got, err := coerceLimit(tc.raw)
			require.NoError(t, err, "raw=%v", tc.raw)
			assert.Equal(t, tc.want, got, "raw=%v", tc.raw)
		}
	})
	t.Run("Should reject out-of-range and fractional values instead of clamping", func(t *testing.T) {
		for _, raw := range []any{0, 101, -5, 3.5, "0", "101", "twenty", "3.5", true} {
			_, err := coerceLimit(raw)
			require.Error(t, err, "raw=%v", raw)
			assert.Equal(t, core.CodeValidationError, core.CodeOf(err))
			details := core.DetailsOf(err)
			require.NotNil(t, details)
			assert.Equal(t, "limit", details["field"])
		}
	})
}

func TestCoerceBool(t *testing.T) {
	t.Run("Should map common textual booleans", func(t *testing.T) {
		truthy := []any{true, 1, float64(1), "true", "1", "yes", "on", "ENABLED", " Yes "}
		for _, raw := range truthy {
			got, warning := coerceBool(raw)
			assert.True(t, got, "raw=%v", raw)
			assert.Empty(t, warning, "raw=%v", raw)
		}
		falsy := []any{nil, false, 0, float64(0), "false", "0", "no", "off", "disabled", ""}
		for _, raw := range falsy {
			got, warning := coerceBool(raw)
			assert.False(t, got, "raw=%v", raw)
			assert.Empty(t, warning, "raw=%v", raw)
		}
	})
	t.Run("Should treat unrecognized values as false with a warning", func(t *testing.T) {
		got, warning := coerceBool("maybe")
		assert.False(t, got)
		assert.Contains(t, warning, "maybe")

		got, warning = coerceBool([]string{"true"})
		assert.False(t, got)
		assert.NotEmpty(t, warning)
	})
}

func TestCoerceStringList(t *testing.T) {
	t.Run("Should flatten every accepted shape", func(t *testing.T) {
		cases := []struct {
			raw  any
			want []string
		}{
			{nil, nil},
			{[]string{"a", "b"}, []string{"a", "b"}},
			{[]any{"a", "b"}, []string{"a", "b"}},
			{`["a", "b"]`, []string{"a", "b"}},
			{"a, b ,c", []string{"a", "b", "c"}},
			{"solo", []string{"solo"}},
			{"  ", nil},
		}
		for _, tc := range cases {
			got, err := coerceStringList(tc.raw)
			require.NoError(t, err, "raw=%v", tc.raw)
			assert.Equal(t, tc.want, got, "raw=%v", tc.raw)
		}
	})
	t.Run("Should reject non-string list items", func(t *testing.T) {
		_, err := coerceStringList([]any{"a", 2})
		require.Error(t, err)
		assert.Equal(t, core.CodeValidationError, core.CodeOf(err))
	})
	t.Run("Should fall back to CSV when the bracketed string is not JSON", func(t *testing.T) {
		got, err := coerceStringList("[broken, json")
		require.NoError(t, err)
		assert.Equal(t, []string{"[broken", "json"}, got)
	})
}

func TestArgHelpers(t *testing.T) {
	t.Run("Should distinguish absent from empty string parameters", func(t *testing.T) {
		args := map[string]any{"present": "", "filled": "x"}
		assert.Nil(t, stringPtrArg(args, "absent"))
		require.NotNil(t, stringPtrArg(args, "present"))
		assert.Equal(t, "", *stringPtrArg(args, "present"))
		assert.Equal(t, "x", *stringPtrArg(args, "filled"))
	})
	t.Run("Should reject missing or blank required parameters", func(t *testing.T) {
		for _, args := range []map[string]any{
			{},
			{"title": "   "},
			{"title": 42},
		} {
			_, err := requiredArg(args, "title")
			require.Error(t, err)
			assert.Equal(t, core.CodeMissingField, core.CodeOf(err))
		}
	})
	t.Run("Should coerce integer parameters from floats and strings", func(t *testing.T) {
		args := map[string]any{"progress": float64(75), "as_string": "30", "frac": 2.5}
		got, err := intPtrArg(args, "progress")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 75, *got)

		got, err = intPtrArg(args, "as_string")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 30, *got)

		got, err = intPtrArg(args, "absent")
		require.NoError(t, err)
		assert.Nil(t, got)

		_, err = intPtrArg(args, "frac")
		require.Error(t, err)
		assert.Equal(t, core.CodeValidationError, core.CodeOf(err))
	})
	t.Run("Should accept objects and JSON object strings", func(t *testing.T) {
		args := map[string]any{
			"inline": map[string]any{"k": "v"},
			"json":   `{"k": "v"}`,
			"broken": "{not json",
			"typed":  42,
		}
		got, err := mapArg(args, "inline")
		require.NoError(t, err)
		assert.Equal(t, "v", got["k"])

		got, err = mapArg(args, "json")
		require.NoError(t, err)
		assert.Equal(t, "v", got["k"])

		got, err = mapArg(args, "absent")
		require.NoError(t, err)
		assert.Nil(t, got)

		_, err = mapArg(args, "broken")
		require.Error(t, err)
		assert.Equal(t, core.CodeInvalidFormat, core.CodeOf(err))

		_, err = mapArg(args, "typed")
		require.Error(t, err)
		assert.Equal(t, core.CodeValidationError, core.CodeOf(err))
	})
	t.Run("Should list valid actions when rejecting an unknown one", func(t *testing.T) {
		err := unknownAction("manage_task", "explode", []string{"create", "update"})
		require.Error(t, err)
		assert.Equal(t, core.CodeValidationError, core.CodeOf(err))
		details := core.DetailsOf(err)
		require.NotNil(t, details)
		assert.Equal(t, []string{"create", "update"}, details["valid_actions"])
	})
}

func TestRuleKey(t *testing.T) {
	t.Run("Should map envelope operations onto guidance rule keys", func(t *testing.T) {
		assert.Equal(t, "create_task", ruleKey("manage_task.create"))
		assert.Equal(t, "complete_task", ruleKey("manage_task.complete"))
		assert.Equal(t, "next_task", ruleKey("manage_task.next"))
		assert.Equal(t, "delegate_context", ruleKey("manage_context.delegate"))
		assert.Equal(t, "manage_project.create", ruleKey("manage_project.create"))
		assert.Equal(t, "health_check", ruleKey("health_check"))
	})
}
