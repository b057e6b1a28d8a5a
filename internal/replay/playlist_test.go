package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queueOf(paths ...string) Playlist {
	p := Playlist{}
	for _, path := range paths {
		p = append(p, QueueItem{Path: path, Name: path})
	}
	return p
}

func paths(p Playlist) []string {
	out := make([]string, 0, len(p))
	for _, item := range p {
		out = append(out, item.Path)
	}
	return out
}

func TestPlaylist_Append_rejects_duplicates(t *testing.T) {
	p := queueOf("a")
	require.NoError(t, p.Append(QueueItem{Path: "b"}))
	err := p.Append(QueueItem{Path: "a"})
	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.Equal(t, []string{"a", "b"}, paths(p))
}

func TestPlaylist_Remove(t *testing.T) {
	p := queueOf("a", "b", "c")
	require.NoError(t, p.Remove(1))
	assert.Equal(t, []string{"a", "c"}, paths(p))

	assert.ErrorIs(t, p.Remove(2), ErrInvalidIndex)
	assert.ErrorIs(t, p.Remove(-1), ErrInvalidIndex)
	assert.Equal(t, []string{"a", "c"}, paths(p))
}

func TestPlaylist_MoveToBottom_then_Reorder(t *testing.T) {
	p := queueOf("A", "B", "C")

	moved, err := p.MoveToBottom(0)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []string{"B", "C", "A"}, paths(p))

	require.NoError(t, p.Reorder(2, 0))
	assert.Equal(t, []string{"A", "B", "C"}, paths(p))
}

func TestPlaylist_Reorder_inverse(t *testing.T) {
	orig := []string{"a", "b", "c", "d", "e"}
	for from := range orig {
		for to := range orig {
			if from == to {
				continue
			}
			p := queueOf(orig...)
			require.NoError(t, p.Reorder(from, to))
			require.NoError(t, p.Reorder(to, from))
			assert.Equal(t, orig, paths(p), "reorder(%d,%d) then back", from, to)
		}
	}
}

func TestPlaylist_Reorder_invalid_indices(t *testing.T) {
	p := queueOf("a", "b")
	assert.ErrorIs(t, p.Reorder(0, 2), ErrInvalidIndex)
	assert.ErrorIs(t, p.Reorder(5, 0), ErrInvalidIndex)
	assert.Equal(t, []string{"a", "b"}, paths(p))
}

func TestPlaylist_MoveToTop_at_head_is_noop(t *testing.T) {
	p := queueOf("a", "b")
	moved, err := p.MoveToTop(0)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = p.MoveToTop(1)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []string{"b", "a"}, paths(p))
}

func TestPlaylist_MoveToBottom_at_tail_is_noop(t *testing.T) {
	p := queueOf("a", "b")
	moved, err := p.MoveToBottom(1)
	require.NoError(t, err)
	assert.False(t, moved)

	_, err = p.MoveToBottom(3)
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestPlaylist_Pop(t *testing.T) {
	p := queueOf("a", "b")
	head, err := p.Pop()
	require.NoError(t, err)
	assert.Equal(t, "a", head.Path)
	assert.Equal(t, []string{"b"}, paths(p))

	_, err = p.Pop()
	require.NoError(t, err)
	_, err = p.Pop()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestPlaylist_RemovePath(t *testing.T) {
	p := queueOf("a", "b")
	assert.True(t, p.RemovePath("a"))
	assert.False(t, p.RemovePath("a"))
	assert.Equal(t, []string{"b"}, paths(p))
}
