package portfolio

import "github.com/tantralabs/optionlab/models"

// PositionID is stable for the life of a position, across compactions.
type PositionID uint64

type slot struct {
	id       PositionID
	position models.Position
	removed  bool
}

// arena stores positions in insertion order. Removal only marks a slot, so a
// walk over the slots is never invalidated by closes made during the walk.
// compact drops marked slots once nobody is walking.
type arena struct {
	slots   []slot
	index   map[models.PositionKey]int
	nextID  PositionID
	removed int
	walking int
}

func newArena() *arena {
	return &arena{
		index:  make(map[models.PositionKey]int),
		nextID: 1,
	}
}

func (a *arena) get(key models.PositionKey) (*slot, bool) {
	i, ok := a.index[key]
	if !ok {
		return nil, false
	}
	return &a.slots[i], true
}

func (a *arena) insert(position models.Position) PositionID {
	id := a.nextID
	a.nextID++
	a.slots = append(a.slots, slot{id: id, position: position})
	a.index[position.Key()] = len(a.slots) - 1
	return id
}

func (a *arena) remove(key models.PositionKey) {
	i, ok := a.index[key]
	if !ok {
		return
	}
	a.slots[i].removed = true
	delete(a.index, key)
	a.removed++
	if a.walking == 0 && a.removed*2 > len(a.slots) {
		a.compact()
	}
}

// walk visits live slots present when the walk started. Slots removed during
// the walk are skipped once marked.
func (a *arena) walk(fn func(s *slot) error) error {
	a.walking++
	defer func() { a.walking-- }()
	n := len(a.slots)
	for i := 0; i < n; i++ {
		if a.slots[i].removed {
			continue
		}
		if err := fn(&a.slots[i]); err != nil {
			return err
		}
	}
	return nil
}

func (a *arena) compact() {
	if a.removed == 0 || a.walking > 0 {
		return
	}
	live := a.slots[:0]
	for _, s := range a.slots {
		if !s.removed {
			live = append(live, s)
		}
	}
	for i := len(live); i < len(a.slots); i++ {
		a.slots[i] = slot{}
	}
	a.slots = live
	for i, s := range a.slots {
		a.index[s.position.Key()] = i
	}
	a.removed = 0
}

func (a *arena) len() int {
	return len(a.index)
}
