// Package condition_test tests the ad copy table and the audio key scheme.
package condition_test

import (
	"testing"

	"github.com/audiopanel/adstudy/internal/condition"
	"github.com/audiopanel/adstudy/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText_AllConditions(t *testing.T) {
	t.Parallel()

	for _, c := range []core.Condition{core.ConditionLow, core.ConditionMedium, core.ConditionHigh} {
		copyText, err := condition.Text(c)
		require.NoError(t, err)
		assert.NotEmpty(t, copyText)
	}
}

func TestText_UnknownCondition(t *testing.T) {
	t.Parallel()

	_, err := condition.Text(core.Condition("extreme"))
	require.ErrorIs(t, err, condition.ErrUnknownCondition)
}

func TestAudioKey_LowIsShared(t *testing.T) {
	t.Parallel()

	assert.Equal(t, condition.SharedLowKey, condition.AudioKey(core.ConditionLow, "P1"))
	assert.Equal(t, condition.SharedLowKey, condition.AudioKey(core.ConditionLow, "P2"))
}

func TestAudioKey_MediumHighDerivedFromIdentifier(t *testing.T) {
	t.Parallel()

	mediumKey := condition.AudioKey(core.ConditionMedium, "P1")
	highKey := condition.AudioKey(core.ConditionHigh, "P2")

	assert.Equal(t, "P1.mp3", mediumKey)
	assert.Equal(t, "P2.mp3", highKey)
	assert.NotEqual(t, mediumKey, highKey)
}
