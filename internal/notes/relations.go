package notes

// AddNote makes the user the note's author and adds the note to the user's notes.
func (u *User) AddNote(note *Note) {
	if u == nil || note == nil {
		return
	}
	note.Author = u
	note.AuthorID = u.ID
	u.orphans = without(u.orphans, note, (*Note).Equal)
	if indexOf(u.Notes, note, (*Note).Equal) < 0 {
		u.Notes = append(u.Notes, note)
		u.attached = append(u.attached, note)
	}
}

// RemoveNote clears the note's author and drops it from the user's notes.
// A persisted note removed this way is deleted when the user is saved.
func (u *User) RemoveNote(note *Note) {
	if u == nil || note == nil {
		return
	}
	note.Author = nil
	note.AuthorID = 0
	if indexOf(u.Notes, note, (*Note).Equal) < 0 {
		return
	}
	u.Notes = without(u.Notes, note, (*Note).Equal)
	u.attached = without(u.attached, note, (*Note).Equal)
	if note.ID != 0 {
		u.orphans = append(u.orphans, note)
	}
}

// AddTag labels the note with the tag and records the note on the tag.
func (n *Note) AddTag(tag *Tag) {
	if n == nil || tag == nil {
		return
	}
	if indexOf(n.Tags, tag, (*Tag).Equal) < 0 {
		n.Tags = append(n.Tags, tag)
	}
	if indexOf(tag.Notes, n, (*Note).Equal) < 0 {
		tag.Notes = append(tag.Notes, n)
	}
}

// RemoveTag removes the tag from the note and the note from the tag.
func (n *Note) RemoveTag(tag *Tag) {
	if n == nil || tag == nil {
		return
	}
	n.Tags = without(n.Tags, tag, (*Tag).Equal)
	tag.Notes = without(tag.Notes, n, (*Note).Equal)
}

// TagNames lists the names of the note's tags in insertion order.
func (n *Note) TagNames() []string {
	names := make([]string, 0, len(n.Tags))
	for _, tag := range n.Tags {
		names = append(names, tag.Name)
	}
	return names
}

func indexOf[T any](items []*T, item *T, equal func(*T, *T) bool) int {
	for index, candidate := range items {
		if equal(candidate, item) {
			return index
		}
	}
	return -1
}

func without[T any](items []*T, item *T, equal func(*T, *T) bool) []*T {
	if indexOf(items, item, equal) < 0 {
		return items
	}
	kept := make([]*T, 0, len(items))
	for _, candidate := range items {
		if !equal(candidate, item) {
			kept = append(kept, candidate)
		}
	}
	return kept
}
