// Package condition holds the static mapping from experimental condition to
// ad copy, and the storage path scheme for generated audio.
package condition

import (
	"fmt"

	"github.com/audiopanel/adstudy/internal/core"
)

// ErrUnknownCondition indicates a condition outside the three study arms.
var ErrUnknownCondition = fmt.Errorf("unknown condition")

// SharedLowKey is the single storage key shared by every low-condition
// participant. The low ad contains no personalization, so one artifact
// serves the whole arm.
const SharedLowKey = "low.mp3"

// adCopy maps each arm to the script read by the TTS voice. The three
// scripts differ only in the intensity of the environmental claims.
var adCopy = map[core.Condition]string{
	core.ConditionLow: "Introducing the new Verde sneaker. Designed for comfort " +
		"and built to last, with a fit that keeps up wherever the day takes you. " +
		"Verde. Made for the way you move.",
	core.ConditionMedium: "Introducing the new Verde sneaker, now made with " +
		"recycled materials. Comfort you can feel, and a smaller footprint you " +
		"can feel good about. Verde. A better step forward.",
	core.ConditionHigh: "Introducing the new Verde sneaker, the world's most " +
		"sustainable shoe. One hundred percent planet-positive, completely " +
		"carbon-neutral, and guaranteed to heal the environment with every " +
		"single step. Verde. Saving the planet, one stride at a time.",
}

// Text returns the ad copy for the given condition.
func Text(c core.Condition) (string, error) {
	copyText, ok := adCopy[c]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCondition, c)
	}

	return copyText, nil
}

// AudioKey returns the storage key for a participant's audio: the shared
// artifact for low, a key derived from the identifier otherwise. The key is
// stable, so replacing audio overwrites in place.
func AudioKey(c core.Condition, participantID string) string {
	if c == core.ConditionLow {
		return SharedLowKey
	}

	return participantID + ".mp3"
}
