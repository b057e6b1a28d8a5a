package replay

import "fmt"

// Playlist is the ordered list of pending clips. Paths are unique.
type Playlist []QueueItem

// IndexOf returns the position of path, or -1.
func (p Playlist) IndexOf(path string) int {
	for i, item := range p {
		if item.Path == path {
			return i
		}
	}
	return -1
}

// Head returns the first item.
func (p Playlist) Head() (QueueItem, bool) {
	if len(p) == 0 {
		return QueueItem{}, false
	}
	return p[0], true
}

// Append adds item at the end.
func (p *Playlist) Append(item QueueItem) error {
	if p.IndexOf(item.Path) >= 0 {
		return ErrAlreadyQueued
	}
	*p = append(*p, item)
	return nil
}

// Remove deletes the item at index.
func (p *Playlist) Remove(index int) error {
	if err := p.check(index); err != nil {
		return err
	}
	*p = append((*p)[:index], (*p)[index+1:]...)
	return nil
}

// RemovePath deletes path if queued and reports whether it was.
func (p *Playlist) RemovePath(path string) bool {
	i := p.IndexOf(path)
	if i < 0 {
		return false
	}
	*p = append((*p)[:i], (*p)[i+1:]...)
	return true
}

// Reorder moves the item at from so it ends up at index to.
func (p *Playlist) Reorder(from, to int) error {
	if err := p.check(from); err != nil {
		return err
	}
	if err := p.check(to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	item := (*p)[from]
	rest := append((*p)[:from:from], (*p)[from+1:]...)
	out := make(Playlist, 0, len(*p))
	out = append(out, rest[:to]...)
	out = append(out, item)
	out = append(out, rest[to:]...)
	*p = out
	return nil
}

// MoveToTop moves the item at index to the head. It reports false when the
// item already is the head.
func (p *Playlist) MoveToTop(index int) (bool, error) {
	if err := p.check(index); err != nil {
		return false, err
	}
	if index == 0 {
		return false, nil
	}
	return true, p.Reorder(index, 0)
}

// MoveToBottom moves the item at index to the tail. It reports false when
// the item already is the tail.
func (p *Playlist) MoveToBottom(index int) (bool, error) {
	if err := p.check(index); err != nil {
		return false, err
	}
	last := len(*p) - 1
	if index == last {
		return false, nil
	}
	return true, p.Reorder(index, last)
}

// Pop removes and returns the head.
func (p *Playlist) Pop() (QueueItem, error) {
	if len(*p) == 0 {
		return QueueItem{}, ErrQueueEmpty
	}
	head := (*p)[0]
	*p = append(Playlist{}, (*p)[1:]...)
	return head, nil
}

func (p Playlist) check(index int) error {
	if index < 0 || index >= len(p) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidIndex, index, len(p))
	}
	return nil
}
