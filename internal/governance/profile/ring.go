package profile

import "pulsegate/internal/governance/models"

// ring is a fixed-capacity buffer that overwrites the oldest sample.
type ring struct {
	buf   []models.ZoneSample
	start int
	size  int
}

func newRing(capacity int) ring {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return ring{buf: make([]models.ZoneSample, capacity)}
}

func (r *ring) push(z models.ZoneSample) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = z
		r.size++
		return
	}
	r.buf[r.start] = z
	r.start = (r.start + 1) % len(r.buf)
}

// each visits samples oldest first until fn returns false.
func (r *ring) each(fn func(models.ZoneSample) bool) {
	for i := 0; i < r.size; i++ {
		if !fn(r.buf[(r.start+i)%len(r.buf)]) {
			return
		}
	}
}
