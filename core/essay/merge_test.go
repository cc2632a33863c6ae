package essay

import (
	"testing"

	"github.com/volatiletech/null/v8"
)

func doneSlot(corrector string, scores [NumCompetencies]int) CorrectionSlot {
	slot := CorrectionSlot{Corrector: corrector, Status: SlotDone}
	for i, s := range scores {
		slot.Scores[i] = null.IntFrom(s)
	}
	return slot
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name    string
		essay   Essay
		want    int
		wantErr error
	}{
		{
			name:    "single: no slot done",
			essay:   Essay{Mode: ModeSingle},
			wantErr: ErrIncompleteGrading,
		},
		{
			name: "single: sum of competencies",
			essay: Essay{
				Mode:  ModeSingle,
				Slots: [NumSlots]CorrectionSlot{doneSlot("a@c.br", [NumCompetencies]int{200, 160, 180, 120, 200})},
			},
			want: 860,
		},
		{
			name: "single: done slot in second position",
			essay: Essay{
				Mode:  ModeSingle,
				Slots: [NumSlots]CorrectionSlot{{Status: SlotPending}, doneSlot("b@c.br", [NumCompetencies]int{100, 100, 100, 100, 100})},
			},
			want: 500,
		},
		{
			name: "dual: one slot done is not enough",
			essay: Essay{
				Mode:  ModeDual,
				Slots: [NumSlots]CorrectionSlot{doneSlot("a@c.br", [NumCompetencies]int{200, 200, 200, 200, 200})},
			},
			wantErr: ErrIncompleteGrading,
		},
		{
			name: "dual: exact mean",
			essay: Essay{
				Mode: ModeDual,
				Slots: [NumSlots]CorrectionSlot{
					doneSlot("a@c.br", [NumCompetencies]int{170, 170, 170, 170, 170}), // 850
					doneSlot("b@c.br", [NumCompetencies]int{180, 180, 180, 180, 180}), // 900
				},
			},
			want: 875,
		},
		{
			name: "dual: half rounds up",
			essay: Essay{
				Mode: ModeDual,
				Slots: [NumSlots]CorrectionSlot{
					doneSlot("a@c.br", [NumCompetencies]int{171, 170, 170, 170, 170}), // 851
					doneSlot("b@c.br", [NumCompetencies]int{180, 180, 180, 180, 180}), // 900
				},
			},
			want: 876,
		},
		{
			name: "dual: both zero",
			essay: Essay{
				Mode: ModeDual,
				Slots: [NumSlots]CorrectionSlot{
					doneSlot("a@c.br", [NumCompetencies]int{}),
					doneSlot("b@c.br", [NumCompetencies]int{}),
				},
			},
			want: 0,
		},
		{
			name: "dual: both maxed",
			essay: Essay{
				Mode: ModeDual,
				Slots: [NumSlots]CorrectionSlot{
					doneSlot("a@c.br", [NumCompetencies]int{200, 200, 200, 200, 200}),
					doneSlot("b@c.br", [NumCompetencies]int{200, 200, 200, 200, 200}),
				},
			},
			want: 1000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Merge(tt.essay)
			if err != tt.wantErr {
				t.Fatalf("Merge() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Merge() = %d, want %d", got, tt.want)
			}
		})
	}
}
