package cdp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mithun50/luma-cli/internal/domain"
)

func ids(list []domain.ExecutionContext) []int {
	out := []int{}
	for _, ec := range list {
		out = append(out, ec.ID)
	}
	return out
}

func TestContextSetOrder(t *testing.T) {
	var s ContextSet
	s.Add(domain.ExecutionContext{ID: 1})
	s.Add(domain.ExecutionContext{ID: 2})
	s.Add(domain.ExecutionContext{ID: 3})
	require.Equal(t, []int{1, 2, 3}, ids(s.List()))

	s.Add(domain.ExecutionContext{ID: 1, Origin: "again"})
	require.Equal(t, []int{2, 3, 1}, ids(s.List()))
	require.Equal(t, "again", s.List()[2].Origin)

	require.True(t, s.Remove(3))
	require.False(t, s.Remove(3))
	require.Equal(t, []int{2, 1}, ids(s.List()))
	require.Equal(t, 2, s.Len())

	s.Clear()
	require.Zero(t, s.Len())
	require.Empty(t, s.List())
}

func TestContextSetListIsACopy(t *testing.T) {
	var s ContextSet
	s.Add(domain.ExecutionContext{ID: 1})
	s.Add(domain.ExecutionContext{ID: 2})
	snap := s.List()
	s.Remove(1)
	s.Add(domain.ExecutionContext{ID: 9})
	require.Equal(t, []int{1, 2}, ids(snap))
}
