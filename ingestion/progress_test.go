package ingestion

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Basic(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "documents", 100, 10)

	tracker.Start()
	tracker.Increment(25)
	tracker.Increment(25)
	tracker.Increment(50)

	assert.Equal(t, 100, tracker.Current())
	assert.Greater(t, tracker.Elapsed(), time.Duration(0))

	output := buf.String()
	assert.Contains(t, output, "100/100 documents")
	assert.Contains(t, output, "100.0%")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "documents", 100, 10)

	tracker.Start()
	tracker.Increment(75)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "100/100", "finish should set to total")
	assert.True(t, strings.HasSuffix(output, "\n"), "finish should print newline")
}

func TestProgressTracker_Edges(t *testing.T) {
	tests := []struct {
		name   string
		run    func(p *ProgressTracker)
		total  int
		want   string
		absent bool
	}{
		{"zero total", func(p *ProgressTracker) { p.Start(); p.Finish() }, 0, "0/0", false},
		{"capped at total", func(p *ProgressTracker) { p.Start(); p.Increment(150) }, 100, "100/100", false},
		{"below interval is quiet", func(p *ProgressTracker) { p.Start(); p.Increment(5) }, 100, "Progress", true},
		{"not started", func(p *ProgressTracker) { p.Increment(50); p.Finish() }, 100, "Progress", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.run(NewProgressTracker(&buf, "documents", tt.total, 10))
			if tt.absent {
				assert.NotContains(t, buf.String(), tt.want)
			} else {
				assert.Contains(t, buf.String(), tt.want)
			}
		})
	}
}
