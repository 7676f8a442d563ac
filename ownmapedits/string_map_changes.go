package ownmapedits

import (
	"github.com/jamesrr39/ownmap-edits/ownmap"
)

type StringMapEntryChangeKind int

const (
	StringMapEntryAdd    StringMapEntryChangeKind = 1
	StringMapEntryModify StringMapEntryChangeKind = 2
	StringMapEntryDelete StringMapEntryChangeKind = 3
)

// StringMapEntryChange is one change to a tag. ValueBefore is what the user saw when making the change,
// and is used to detect whether somebody else changed the same tag in the meantime.
type StringMapEntryChange struct {
	Kind        StringMapEntryChangeKind `json:"kind"`
	Key         string                   `json:"key"`
	Value       string                   `json:"value,omitempty"`
	ValueBefore string                   `json:"valueBefore,omitempty"`
}

func (c StringMapEntryChange) ConflictsWith(tags ownmap.TagMap) bool {
	current, exists := tags[c.Key]
	switch c.Kind {
	case StringMapEntryAdd:
		return exists && current != c.Value
	case StringMapEntryModify:
		return current != c.ValueBefore && current != c.Value
	case StringMapEntryDelete:
		return exists && current != c.ValueBefore
	default:
		return true
	}
}

func (c StringMapEntryChange) applyTo(tags ownmap.TagMap) {
	switch c.Kind {
	case StringMapEntryAdd, StringMapEntryModify:
		tags[c.Key] = c.Value
	case StringMapEntryDelete:
		delete(tags, c.Key)
	}
}

// Reversed returns the change that undoes this change
func (c StringMapEntryChange) Reversed() StringMapEntryChange {
	switch c.Kind {
	case StringMapEntryAdd:
		return StringMapEntryChange{Kind: StringMapEntryDelete, Key: c.Key, ValueBefore: c.Value}
	case StringMapEntryDelete:
		return StringMapEntryChange{Kind: StringMapEntryAdd, Key: c.Key, Value: c.ValueBefore}
	default:
		return StringMapEntryChange{Kind: StringMapEntryModify, Key: c.Key, Value: c.ValueBefore, ValueBefore: c.Value}
	}
}

type StringMapChanges []StringMapEntryChange

func (changes StringMapChanges) ConflictsWith(tags ownmap.TagMap) bool {
	for _, change := range changes {
		if change.ConflictsWith(tags) {
			return true
		}
	}
	return false
}

// ApplyTo returns a copy of tags with the changes applied. It does not check for conflicts.
func (changes StringMapChanges) ApplyTo(tags ownmap.TagMap) ownmap.TagMap {
	result := tags.Copy()
	if result == nil {
		result = make(ownmap.TagMap)
	}
	for _, change := range changes {
		change.applyTo(result)
	}
	return result
}

func (changes StringMapChanges) Reversed() StringMapChanges {
	var reversed StringMapChanges
	for _, change := range changes {
		reversed = append(reversed, change.Reversed())
	}
	return reversed
}
