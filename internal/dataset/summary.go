package dataset

// Aggregate summary keys.
const (
	KeyFace  = "face"
	KeyTotal = "total"
)

// Summary counts written samples per partition name plus the aggregate keys
// KeyFace (samples with class 1) and KeyTotal.
type Summary map[string]int

// Add records one sample of class in p.
func (s Summary) Add(p Partition, class int) {
	s[string(p)]++
	s[KeyFace] += class
	s[KeyTotal]++
}

// Total returns the number of samples recorded.
func (s Summary) Total() int { return s[KeyTotal] }

// Face returns the number of samples with a face.
func (s Summary) Face() int { return s[KeyFace] }

// Count returns the number of samples in p.
func (s Summary) Count(p Partition) int { return s[string(p)] }

// Clone returns an independent copy of s.
func (s Summary) Clone() Summary {
	out := make(Summary, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
