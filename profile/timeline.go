package profile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Bucket labels one time slice of the field's profile sequences.
type Bucket struct {
	Key   string // source range key, e.g. "0_25"
	Frame int    // first frame covered by the bucket
}

// Timeline maps simulation ticks onto profile buckets. Each bucket spans
// TicksPerBucket ticks; the last bucket holds once the timeline runs out.
type Timeline struct {
	buckets        []Bucket
	ticksPerBucket int
	active         int
	pinned         bool // set by Seek; Advance holds the active bucket
}

// TimelineFromKeys builds a timeline from "start_end" range keys. A bucket's
// frame is end - ticksPerBucket. Buckets are ordered by frame.
func TimelineFromKeys(keys []string, ticksPerBucket int) (*Timeline, error) {
	b := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		f, err := RangeFrame(k, ticksPerBucket)
		if err != nil {
			return nil, err
		}
		b = append(b, Bucket{Key: k, Frame: f})
	}
	sort.SliceStable(b, func(i, j int) bool { return b[i].Frame < b[j].Frame })
	return &Timeline{buckets: b, ticksPerBucket: ticksPerBucket, active: -1}, nil
}

// RangeFrame returns the first frame of a "start_end" range key.
func RangeFrame(key string, ticksPerBucket int) (int, error) {
	_, end, ok := strings.Cut(key, "_")
	if !ok {
		return 0, fmt.Errorf("range key %q: missing separator", key)
	}
	n, err := strconv.Atoi(end)
	if err != nil {
		return 0, fmt.Errorf("range key %q: %w", key, err)
	}
	return n - ticksPerBucket, nil
}

// Len returns the number of buckets.
func (t *Timeline) Len() int { return len(t.buckets) }

// Buckets returns the ordered bucket labels.
func (t *Timeline) Buckets() []Bucket {
	out := make([]Bucket, len(t.buckets))
	copy(out, t.buckets)
	return out
}

// TicksPerBucket returns the bucket width in ticks.
func (t *Timeline) TicksPerBucket() int { return t.ticksPerBucket }

// Active returns the bucket selected by the last Advance or Seek, or -1.
func (t *Timeline) Active() int { return t.active }

// BucketAt returns the bucket index covering tick.
func (t *Timeline) BucketAt(tick int) int {
	if len(t.buckets) == 0 {
		return 0
	}
	if t.ticksPerBucket <= 0 {
		return 0
	}
	i := tick / t.ticksPerBucket
	if i >= len(t.buckets) {
		i = len(t.buckets) - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Advance moves the timeline to tick and reports whether the active bucket
// changed. A pinned timeline keeps its bucket.
func (t *Timeline) Advance(tick int) (int, bool) {
	if t.pinned {
		return t.active, false
	}
	i := t.BucketAt(tick)
	if i == t.active {
		return i, false
	}
	t.active = i
	return i, true
}

// Seek makes bucket i active and pins it until Resume.
func (t *Timeline) Seek(i int) bool {
	if i < 0 || i >= len(t.buckets) {
		return false
	}
	t.active = i
	t.pinned = true
	return true
}

// Resume lets Advance follow the tick again.
func (t *Timeline) Resume() { t.pinned = false }

// Pinned reports whether Seek holds the active bucket.
func (t *Timeline) Pinned() bool { return t.pinned }
