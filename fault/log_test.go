package fault

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordAndGetRoundTrip(t *testing.T) {
	l := NewLog(4)
	l.Record("hsm.go", 10, 100)
	l.Record("chain.go", 20, 101)

	require.Equal(t, 2, l.Len())
	rec, ok := l.Get()
	require.True(t, ok)
	require.Equal(t, Record{File: "hsm.go", Line: 10, Time: 100}, rec)

	rec, ok = l.Get()
	require.True(t, ok)
	require.Equal(t, Record{File: "chain.go", Line: 20, Time: 101}, rec)

	require.True(t, l.Empty())
	_, ok = l.Get()
	require.False(t, ok)
}

func TestOverwriteOldestWhenFull(t *testing.T) {
	l := NewLog(2)
	l.Record("a.go", 1, 1)
	l.Record("b.go", 2, 2)
	l.Record("c.go", 3, 3) // overwrites a.go

	require.Equal(t, 2, l.Len())
	rec, ok := l.Get()
	require.True(t, ok)
	require.Equal(t, "b.go", rec.File)

	rec, ok = l.Get()
	require.True(t, ok)
	require.Equal(t, "c.go", rec.File)
}
