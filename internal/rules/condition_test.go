package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCondition_Keywords(t *testing.T) {
	tests := map[string]ConditionKind{
		"not_dismissed": CondNotDismissed,
		"no_prev":       CondNoPrev,
		"is_void":       CondIsVoid,
		"no_camera":     CondNoCamera,
	}
	for token, want := range tests {
		c := ParseCondition(token)
		assert.Equal(t, want, c.Kind, "token %q", token)
		assert.Equal(t, token, c.Raw)
	}
}

func TestParseCondition_Arguments(t *testing.T) {
	c := ParseCondition("prev:intro, tip2,,tip3")
	require.Equal(t, CondPrev, c.Kind)
	assert.Equal(t, []string{"intro", "tip2", "tip3"}, c.IDs)

	c = ParseCondition("elapsed:10s")
	require.Equal(t, CondElapsed, c.Kind)
	assert.Equal(t, 10*time.Second, c.Elapsed)

	c = ParseCondition("ops_last:bpy.ops.mesh.primitive_cube_add")
	require.Equal(t, CondOpsLast, c.Kind)
	assert.Equal(t, "bpy.ops.mesh.primitive_cube_add", c.Arg)

	c = ParseCondition("ops_recent:bpy.ops.render")
	assert.Equal(t, CondOpsRecent, c.Kind)

	c = ParseCondition("object_exists:Camera")
	require.Equal(t, CondObjectExists, c.Kind)
	assert.Equal(t, "Camera", c.Arg)

	c = ParseCondition("no_object_exists:Cube")
	require.Equal(t, CondNoObjectExists, c.Kind)
	assert.Equal(t, "Cube", c.Arg)
}

func TestParseCondition_MalformedFailsClosed(t *testing.T) {
	for _, token := range []string{
		"",
		"bogus",
		"elapsed:10",
		"elapsed:s",
		"elapsed:-3s",
		"elapsed:10000000000s",
		"elapsed:99999999999999999999s",
		"elapsed:ten s",
		"prev:",
		"prev:,,",
		"ops_last:",
		"object_exists:",
		"no_prev:intro",
		"is_void:yes",
	} {
		assert.Equal(t, CondUnknown, ParseCondition(token).Kind, "token %q", token)
	}
}

func TestParseCondition_ElapsedUpperBound(t *testing.T) {
	c := ParseCondition("elapsed:9223372036s")
	require.Equal(t, CondElapsed, c.Kind)
	assert.Equal(t, 9223372036*time.Second, c.Elapsed)
	assert.Positive(t, c.Elapsed)

	assert.Equal(t, CondUnknown, ParseCondition("elapsed:9223372037s").Kind)
}

func TestParseConditions_SplitsOnWhitespace(t *testing.T) {
	conds := ParseConditions("  not_dismissed\tprev:intro   elapsed:5s ")
	require.Len(t, conds, 3)
	assert.Equal(t, CondNotDismissed, conds[0].Kind)
	assert.Equal(t, CondPrev, conds[1].Kind)
	assert.Equal(t, CondElapsed, conds[2].Kind)

	assert.Empty(t, ParseConditions("   "))
}

func TestConditionKind_String(t *testing.T) {
	assert.Equal(t, "ops_recent", CondOpsRecent.String())
	assert.Equal(t, "unknown", CondUnknown.String())
	for _, kw := range SupportedKeywords {
		assert.NotEqual(t, CondUnknown, kindForKeyword(kw), kw)
	}
}

func kindForKeyword(kw string) ConditionKind {
	for k := CondNotDismissed; k <= CondNoCamera; k++ {
		if k.String() == kw {
			return k
		}
	}
	return CondUnknown
}
