package book

import (
	"math"
	"testing"
)

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(5)
	if h.Len() != 0 {
		t.Errorf("Len = %d, want 0", h.Len())
	}
	if _, ok := h.Last(); ok {
		t.Error("Last on empty history should report absence")
	}
	if h.WeightedAveragePrice() != 0 {
		t.Errorf("WeightedAveragePrice = %v, want 0", h.WeightedAveragePrice())
	}
	if h.TotalVolume() != 0 {
		t.Errorf("TotalVolume = %v, want 0", h.TotalVolume())
	}
}

func TestHistory_PushAndLast(t *testing.T) {
	h := NewHistory(5)
	h.Push(Record{Price: 10, Volume: 2})
	h.Push(Record{Price: 12, Volume: 4})

	last, ok := h.Last()
	if !ok || last.Price != 12 {
		t.Errorf("Last = %+v, %v; want price 12", last, ok)
	}
	if h.Len() != 2 {
		t.Errorf("Len = %d, want 2", h.Len())
	}
}

func TestHistory_EvictsOldestWhenFull(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Push(Record{Price: float64(i), Volume: 1})
	}
	if h.Len() != 3 {
		t.Fatalf("Len = %d, want 3", h.Len())
	}
	records := h.Records()
	if records[0].Price != 3 || records[2].Price != 5 {
		t.Errorf("records = %v, want prices 3..5 oldest first", records)
	}
}

func TestHistory_WeightedAveragePrice(t *testing.T) {
	h := NewHistory(10)
	h.Push(Record{Price: 10, Volume: 1})
	h.Push(Record{Price: 20, Volume: 3})

	want := (10.0*1 + 20.0*3) / 4
	if got := h.WeightedAveragePrice(); math.Abs(got-want) > 1e-9 {
		t.Errorf("WeightedAveragePrice = %v, want %v", got, want)
	}
	if got := h.TotalVolume(); got != 4 {
		t.Errorf("TotalVolume = %v, want 4", got)
	}
}

func TestHistory_RecordsIsACopy(t *testing.T) {
	h := NewHistory(5)
	h.Push(Record{Price: 10, Volume: 2})

	records := h.Records()
	records[0].Price = 999
	if last, _ := h.Last(); last.Price != 10 {
		t.Error("mutating the returned slice must not affect the history")
	}
}

func TestNewHistory_MinimumWindow(t *testing.T) {
	h := NewHistory(0)
	h.Push(Record{Price: 1, Volume: 1})
	h.Push(Record{Price: 2, Volume: 1})
	if h.Len() != 1 {
		t.Errorf("Len = %d, want 1 (window clamps to 1)", h.Len())
	}
}
