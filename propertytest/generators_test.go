package propertytest

import (
	"testing"

	"github.com/danieldreier/vocab-drill/internal/progress"
	"github.com/leanovate/gopter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOptionalGeneratorsDrawBothBranches samples the optional generators
// until both the nil and the set branch have come up, so a nil draw that
// cannot be asserted to *int fails here instead of deep inside a sequence.
func TestOptionalGeneratorsDrawBothBranches(t *testing.T) {
	params := gopter.DefaultGenParameters()

	var nilGrade, setGrade, nilTime, setTime int
	for i := 0; i < 200; i++ {
		v, ok := GenAnswer(7)(params).Retrieve()
		require.True(t, ok, "draw %d produced no answer", i)
		a, ok := v.(progress.Answer)
		require.True(t, ok, "draw %d has type %T", i, v)

		assert.Equal(t, int64(7), a.WordID)
		require.NoError(t, a.Validate())
		if a.Grade == nil {
			nilGrade++
		} else {
			setGrade++
		}
		if a.ResponseTimeMs == nil {
			nilTime++
		} else {
			setTime++
		}
	}
	assert.Positive(t, nilGrade)
	assert.Positive(t, setGrade)
	assert.Positive(t, nilTime)
	assert.Positive(t, setTime)

	var nilDifficulty, setDifficulty int
	for i := 0; i < 200; i++ {
		v, ok := GenDifficulty()(params).Retrieve()
		require.True(t, ok)
		d, ok := v.(*int)
		require.True(t, ok, "difficulty draw has type %T", v)
		if d == nil {
			nilDifficulty++
			continue
		}
		setDifficulty++
		assert.GreaterOrEqual(t, *d, 1)
		assert.LessOrEqual(t, *d, 5)
	}
	assert.Positive(t, nilDifficulty)
	assert.Positive(t, setDifficulty)
}
