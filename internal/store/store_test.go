package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"shapematch/internal/detector"
)

func TestAppendAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matches.db")
	s, err := OpenStore(path)
	require.NoError(t, err)
	defer s.Close()

	pts := []detector.MatchPoint{
		{X: 1, Y: 2, TemplateID: "t1", Similarity: 91.5},
		{X: 3, Y: 4, TemplateID: "t2", Similarity: 88.0},
	}
	require.NoError(t, s.Append("cls-a", pts))

	got, err := s.Recent("cls-a", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "t2", got[0].TemplateID)
	require.Equal(t, "t1", got[1].TemplateID)
}

func TestRecentRespectsLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matches.db")
	s, err := OpenStore(path)
	require.NoError(t, err)
	defer s.Close()

	var pts []detector.MatchPoint
	for i := 0; i < 5; i++ {
		pts = append(pts, detector.MatchPoint{X: i, Y: i, TemplateID: "t", Similarity: float64(i)})
	}
	require.NoError(t, s.Append("cls-b", pts))

	got, err := s.Recent("cls-b", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestAppendEmptyIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matches.db")
	s, err := OpenStore(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append("cls-c", nil))
	got, err := s.Recent("cls-c", 10)
	require.NoError(t, err)
	require.Empty(t, got)
}
