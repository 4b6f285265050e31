package logging

import (
	"strings"
	"time"
)

// ProgressSampler suppresses repetitive encode progress logs. It emits when the
// phase changes, when the percent crosses a bucket boundary, or when
// minInterval has elapsed since the last emission.
type ProgressSampler struct {
	bucketSize  float64
	minInterval time.Duration
	lastStage   string
	lastBucket  int
	lastEmit    time.Time
	now         func() time.Time
}

// NewProgressSampler constructs a sampler with the given bucket size in
// percent (default 5). A zero minInterval disables time-based emission.
func NewProgressSampler(bucketSize float64, minInterval time.Duration) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, minInterval: minInterval, lastBucket: -1, now: time.Now}
}

// ShouldLog reports whether a progress update should be logged. Percent may
// be negative to indicate unknown progress.
func (s *ProgressSampler) ShouldLog(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	emit := false
	stage = strings.TrimSpace(stage)
	if stage != "" && stage != s.lastStage {
		s.lastStage = stage
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		if percent > 100 {
			percent = 100
		}
		bucket := int(percent / s.bucketSize)
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	now := s.now()
	if !emit && s.minInterval > 0 && !s.lastEmit.IsZero() && now.Sub(s.lastEmit) >= s.minInterval {
		emit = true
	}
	if emit {
		s.lastEmit = now
	}
	return emit
}

// Reset clears the sampler state when a new job starts.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastStage = ""
	s.lastBucket = -1
	s.lastEmit = time.Time{}
}
