package assist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRules(t *testing.T) {
	data := []byte("id\tcondition\tsuggestion\tbuttons\taction\n" +
		"intro\tno_prev not_dismissed\tWelcome\tok dismiss\t\n" +
		"intro\tis_void\tShadowed\tok\t\n" +
		"\t\tNo id\tok\t\n" +
		"cube\tsometimes\tAdd a cube?\tok\tops:mesh.primitive_cube_add\n")

	rs, recErrs, err := ParseRules(data)
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, "intro", rs[0].ID)
	assert.Equal(t, []string{"no_prev"}, rs[0].ConditionTokens())
	assert.Equal(t, "cube", rs[1].ID)

	require.Len(t, recErrs, 1)
	assert.Equal(t, 4, recErrs[0].Line)

	assert.Error(t, ValidateRule(rs[1]))
	assert.NoError(t, ValidateRule(rs[0]))
}

func TestParseRules_MissingColumn(t *testing.T) {
	_, _, err := ParseRules([]byte("id\tsuggestion\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}
