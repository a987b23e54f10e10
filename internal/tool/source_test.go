package tool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_AssignsSequentialCitationNumbers(t *testing.T) {
	tracker := NewTracker()
	tracker.Add(Source{CourseTitle: "Course A"})
	tracker.Add(Source{CourseTitle: "Course B"}, Source{CourseTitle: "Course C"})

	sources := tracker.Drain()
	assert.Len(t, sources, 3)
	assert.Equal(t, 1, sources[0].CitationNumber)
	assert.Equal(t, 2, sources[1].CitationNumber)
	assert.Equal(t, 3, sources[2].CitationNumber)
	assert.Equal(t, "Course A", sources[0].CourseTitle)
}

func TestTracker_KeepsToolAssignedNumbers(t *testing.T) {
	tracker := NewTracker()
	tracker.Add(Source{CourseTitle: "Course A", CitationNumber: 1}, Source{CourseTitle: "Course A", CitationNumber: 2})
	tracker.Add(Source{CourseTitle: "Course B", CitationNumber: 1})

	sources := tracker.Drain()
	assert.Len(t, sources, 3)
	assert.Equal(t, 1, sources[0].CitationNumber)
	assert.Equal(t, 2, sources[1].CitationNumber)
	assert.Equal(t, 1, sources[2].CitationNumber)
}

func TestTracker_DrainResetsState(t *testing.T) {
	tracker := NewTracker()
	tracker.Add(Source{CourseTitle: "Course A"})

	first := tracker.Drain()
	assert.Len(t, first, 1)

	second := tracker.Drain()
	assert.NotNil(t, second)
	assert.Empty(t, second)
}

func TestTracker_DrainOnEmptyTrackerYieldsEmptySlice(t *testing.T) {
	tracker := NewTracker()
	sources := tracker.Drain()
	assert.NotNil(t, sources)
	assert.Empty(t, sources)
}

func TestTracker_NumberingRestartsAfterDrain(t *testing.T) {
	tracker := NewTracker()
	tracker.Add(Source{CourseTitle: "Course A"})
	tracker.Drain()

	tracker.Add(Source{CourseTitle: "Course B"})
	sources := tracker.Drain()
	assert.Len(t, sources, 1)
	assert.Equal(t, 1, sources[0].CitationNumber)
}

func TestTracker_ConcurrentAddsDoNotRace(t *testing.T) {
	tracker := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Add(Source{CourseTitle: "Course"})
		}()
	}
	wg.Wait()

	sources := tracker.Drain()
	assert.Len(t, sources, 10)
	seen := map[int]bool{}
	for _, s := range sources {
		seen[s.CitationNumber] = true
	}
	assert.Len(t, seen, 10)
}
