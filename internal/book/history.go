package book

// Record is one cycle's trade-weighted mean price and total volume on
// an instrument.
type Record struct {
	Price  float64
	Volume float64
}

// History is a bounded series of trade records. When the window is
// full the oldest record is evicted first.
type History struct {
	window  int
	records []Record
}

// NewHistory creates a history holding at most window records.
func NewHistory(window int) *History {
	if window < 1 {
		window = 1
	}
	return &History{window: window}
}

// Push appends a record, evicting the oldest when full.
func (h *History) Push(r Record) {
	if len(h.records) == h.window {
		copy(h.records, h.records[1:])
		h.records[len(h.records)-1] = r
		return
	}
	h.records = append(h.records, r)
}

// Len returns the number of stored records.
func (h *History) Len() int { return len(h.records) }

// Last returns the most recent record.
func (h *History) Last() (Record, bool) {
	if len(h.records) == 0 {
		return Record{}, false
	}
	return h.records[len(h.records)-1], true
}

// WeightedAveragePrice returns the volume-weighted mean price over
// the window, or 0 when no volume has traded.
func (h *History) WeightedAveragePrice() float64 {
	var sum, vol float64
	for _, r := range h.records {
		sum += r.Price * r.Volume
		vol += r.Volume
	}
	if vol == 0 {
		return 0
	}
	return sum / vol
}

// TotalVolume returns the summed volume over the window.
func (h *History) TotalVolume() float64 {
	var vol float64
	for _, r := range h.records {
		vol += r.Volume
	}
	return vol
}

// Records returns a copy of the stored records, oldest first.
func (h *History) Records() []Record {
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}
