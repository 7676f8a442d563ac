package webservices

import (
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapedits"
)

type actionJSON struct {
	Type     ownmapedits.ActionType       `json:"type"`
	Changes  ownmapedits.StringMapChanges `json:"changes,omitempty"`
	Position *ownmap.Position             `json:"position,omitempty"`
	Tags     ownmap.TagMap                `json:"tags,omitempty"`
}

func actionToJSON(action ownmapedits.EditAction) *actionJSON {
	a := &actionJSON{Type: action.ActionType()}

	switch action := action.(type) {
	case ownmapedits.UpdateElementTagsAction:
		a.Changes = action.Changes
	case ownmapedits.RevertUpdateElementTagsAction:
		a.Changes = action.Changes
	case ownmapedits.MoveNodeAction:
		a.Position = &action.Position
	case ownmapedits.RevertMoveNodeAction:
		a.Position = &action.Position
	case ownmapedits.CreateNodeAction:
		a.Position = &action.Position
		a.Tags = action.Tags
	}

	return a
}

func (a *actionJSON) toAction() (ownmapedits.EditAction, errorsx.Error) {
	position := func() (ownmap.Position, errorsx.Error) {
		if a.Position == nil {
			return ownmap.Position{}, errorsx.Errorf("%s action requires a position", a.Type)
		}
		return *a.Position, nil
	}

	switch a.Type {
	case ownmapedits.ActionTypeDeletePoiNode:
		return ownmapedits.DeletePoiNodeAction{}, nil
	case ownmapedits.ActionTypeUpdateElementTags:
		return ownmapedits.UpdateElementTagsAction{Changes: a.Changes}, nil
	case ownmapedits.ActionTypeRevertUpdateElementTags:
		return ownmapedits.RevertUpdateElementTagsAction{Changes: a.Changes}, nil
	case ownmapedits.ActionTypeMoveNode:
		p, err := position()
		if err != nil {
			return nil, err
		}
		return ownmapedits.MoveNodeAction{Position: p}, nil
	case ownmapedits.ActionTypeRevertMoveNode:
		p, err := position()
		if err != nil {
			return nil, err
		}
		return ownmapedits.RevertMoveNodeAction{Position: p}, nil
	case ownmapedits.ActionTypeCreateNode:
		p, err := position()
		if err != nil {
			return nil, err
		}
		return ownmapedits.CreateNodeAction{Position: p, Tags: a.Tags}, nil
	case ownmapedits.ActionTypeRevertCreateNode:
		return ownmapedits.RevertCreateNodeAction{}, nil
	default:
		return nil, errorsx.Errorf("unknown action type: %q", a.Type)
	}
}

// elementJSON holds exactly one of its elements
type elementJSON struct {
	Node     *ownmap.Node     `json:"node,omitempty"`
	Way      *ownmap.Way      `json:"way,omitempty"`
	Relation *ownmap.Relation `json:"relation,omitempty"`
}

func elementToJSON(element ownmap.Element) *elementJSON {
	switch e := element.(type) {
	case *ownmap.Node:
		return &elementJSON{Node: e}
	case *ownmap.Way:
		return &elementJSON{Way: e}
	case *ownmap.Relation:
		return &elementJSON{Relation: e}
	default:
		return nil
	}
}

func (e *elementJSON) toElement() ownmap.Element {
	switch {
	case e == nil:
		return nil
	case e.Node != nil:
		return e.Node
	case e.Way != nil:
		return e.Way
	case e.Relation != nil:
		return e.Relation
	default:
		return nil
	}
}

type editJSON struct {
	ID              int64           `json:"id"`
	Type            string          `json:"type"`
	ElementType     string          `json:"elementType"`
	ElementID       int64           `json:"elementId"`
	OriginalElement *elementJSON    `json:"originalElement,omitempty"`
	Action          *actionJSON     `json:"action"`
	Position        ownmap.Position `json:"position"`
	CreatedAt       time.Time       `json:"createdAt"`
	State           string          `json:"state"`
}

func editToJSON(edit *ownmapedits.Edit) *editJSON {
	e := &editJSON{
		ID:          edit.ID,
		Type:        edit.Type,
		ElementType: edit.ElementType.String(),
		ElementID:   edit.ElementID,
		Action:      actionToJSON(edit.Action),
		Position:    edit.Position,
		CreatedAt:   edit.CreatedAt,
		State:       edit.State.String(),
	}
	if edit.OriginalElement != nil {
		e.OriginalElement = elementToJSON(edit.OriginalElement)
	}
	return e
}

// addEditRequest is the body for adding an edit.
// Without an original element, the element is taken from the local map data.
type addEditRequest struct {
	Type            string          `json:"type"`
	ElementType     string          `json:"elementType"`
	ElementID       int64           `json:"elementId"`
	OriginalElement *elementJSON    `json:"originalElement"`
	Action          *actionJSON     `json:"action"`
	Position        ownmap.Position `json:"position"`
}

func parseObjectType(s string) (ownmap.ObjectType, errorsx.Error) {
	for _, t := range []ownmap.ObjectType{ownmap.ObjectTypeNode, ownmap.ObjectTypeWay, ownmap.ObjectTypeRelation} {
		if t.String() == s {
			return t, nil
		}
	}
	return ownmap.ObjectTypeUnknown, errorsx.Errorf("unknown element type: %q", s)
}
