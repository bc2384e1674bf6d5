package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_DedupOnInsert(t *testing.T) {
	s := NewSink()

	d := Diagnostic{Severity: ERROR, Code: CodeFSRead, Message: "boom", Location: Location{Path: "Makefile", Line: 3}}
	require.True(t, s.Add(d))
	require.False(t, s.Add(d), "identical 5-tuple should be deduplicated")
	require.Equal(t, 1, s.Len())

	d2 := d
	d2.Message = "different"
	require.True(t, s.Add(d2), "differing message is a distinct diagnostic")
	require.Equal(t, 2, s.Len())
}

func TestSink_AnyError(t *testing.T) {
	s := NewSink()
	assert.False(t, s.AnyError())

	s.Add(Diagnostic{Severity: WARN, Code: CodeIRUnmappedFlag, Message: "warn"})
	assert.False(t, s.AnyError())

	s.Add(Diagnostic{Severity: ERROR, Code: CodeDiscoveryCycle, Message: "cycle"})
	assert.True(t, s.AnyError())
}

func TestSink_Sorted(t *testing.T) {
	s := NewSink()
	s.Add(Diagnostic{Severity: INFO, Code: CodeConfigSchema, Message: "info"})
	s.Add(Diagnostic{Severity: ERROR, Code: CodeDiscoveryCycle, Message: "err-b"})
	s.Add(Diagnostic{Severity: ERROR, Code: CodeConfigMissing, Message: "err-a"})
	s.Add(Diagnostic{Severity: WARN, Code: CodeEvalNoSource, Message: "warn"})

	sorted := s.Sorted()
	require.Len(t, sorted, 4)

	// Severity descending (ERROR, ERROR, WARN, INFO)...
	assert.Equal(t, ERROR, sorted[0].Severity)
	assert.Equal(t, ERROR, sorted[1].Severity)
	assert.Equal(t, WARN, sorted[2].Severity)
	assert.Equal(t, INFO, sorted[3].Severity)

	// ...then code ascending within the same severity.
	assert.Equal(t, CodeConfigMissing, sorted[0].Code)
	assert.Equal(t, CodeDiscoveryCycle, sorted[1].Code)
}

func TestLocation_IsZero(t *testing.T) {
	var l Location
	assert.True(t, l.IsZero())
	l.Line = 1
	assert.False(t, l.IsZero())
}
