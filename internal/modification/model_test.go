package modification

import (
	"testing"
	"time"

	"github.com/amal-center/platform/internal/shared/types"
)

func date(s string) time.Time {
	d, err := types.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestTypeValid(t *testing.T) {
	for _, valid := range []Type{TypeFreeze, TypeScheduleChange, TypeTherapistChange, TypeProgramChange} {
		if !valid.Valid() {
			t.Errorf("Expected %s to be valid", valid)
		}
	}
	if Type("vacation").Valid() {
		t.Error("Expected unknown type to be invalid")
	}
}

func TestScopeValid(t *testing.T) {
	for _, valid := range []Scope{ScopeAll, ScopeSessionsOnly, ScopeFutureOnly} {
		if !valid.Valid() {
			t.Errorf("Expected %s to be valid", valid)
		}
	}
	if Scope("some").Valid() {
		t.Error("Expected unknown scope to be invalid")
	}
}

func TestFreezeDays(t *testing.T) {
	tests := []struct {
		name     string
		modType  Type
		start    string
		end      string
		expected int
	}{
		{"single day", TypeFreeze, "2025-06-01", "2025-06-01", 1},
		{"full week", TypeFreeze, "2025-06-01", "2025-06-07", 7},
		{"inverted window", TypeFreeze, "2025-06-07", "2025-06-01", 0},
		{"non-freeze type", TypeScheduleChange, "2025-06-01", "2025-06-07", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Request{
				Type: tt.modType,
				Changes: ProposedChange{
					FreezeStartDate: date(tt.start),
					FreezeEndDate:   date(tt.end),
				},
			}
			if got := r.FreezeDays(); got != tt.expected {
				t.Errorf("Expected %d days, got %d", tt.expected, got)
			}
		})
	}
}

func TestChangeMap(t *testing.T) {
	t.Run("freeze", func(t *testing.T) {
		r := Request{
			Type: TypeFreeze,
			Changes: ProposedChange{
				FreezeStartDate: date("2025-06-01"),
				FreezeEndDate:   date("2025-06-07"),
				Reason:          "family travel abroad",
				IncludeWeekends: true,
			},
		}
		m := r.ChangeMap()
		if m["freeze_start_date"] != "2025-06-01" || m["freeze_end_date"] != "2025-06-07" {
			t.Errorf("Expected freeze window in map, got %v", m)
		}
		if m["include_weekends"] != true || m["exclude_holidays"] != false {
			t.Errorf("Expected calendar flags in map, got %v", m)
		}
	})

	t.Run("therapist change", func(t *testing.T) {
		id := types.NewID()
		r := Request{Type: TypeTherapistChange, Changes: ProposedChange{NewTherapistID: id}}
		m := r.ChangeMap()
		if m["new_therapist_id"] != id.String() {
			t.Errorf("Expected therapist id in map, got %v", m)
		}
	})

	t.Run("program change omits zero end date", func(t *testing.T) {
		r := Request{Type: TypeProgramChange, Changes: ProposedChange{SessionsDelta: -4}}
		m := r.ChangeMap()
		if m["sessions_delta"] != -4 {
			t.Errorf("Expected sessions delta in map, got %v", m)
		}
		if _, ok := m["new_end_date"]; ok {
			t.Error("Expected zero end date to be omitted")
		}
	})
}
