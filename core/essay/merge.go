package essay

import "github.com/pkg/errors"

// ErrIncompleteGrading reports a programming-contract violation: Merge was
// invoked before the required correction slots were done. The orchestrator
// must never let this surface to a user.
var ErrIncompleteGrading = errors.New("incomplete grading")

// Merge combines the done correction slots into the final score.
//
// Single-corrector essays score the sum of the slot's five competencies
// (0–1000). Dual-corrector essays score the arithmetic mean of the two slot
// sums, rounded to the nearest integer with halves rounding up.
func Merge(e Essay) (int, error) {
	if e.DoneSlots() < e.RequiredSlots() {
		return 0, ErrIncompleteGrading
	}

	if e.Mode == ModeDual {
		s1, s2 := e.Slots[0].Sum(), e.Slots[1].Sum()
		return (s1 + s2 + 1) / 2, nil
	}

	for _, s := range e.Slots {
		if s.Status == SlotDone {
			return s.Sum(), nil
		}
	}
	return 0, ErrIncompleteGrading
}
