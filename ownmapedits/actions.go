package ownmapedits

import (
	"github.com/jamesrr39/ownmap-edits/ownmap"
)

type ActionType string

const (
	ActionTypeDeletePoiNode           ActionType = "DeletePoiNode"
	ActionTypeUpdateElementTags       ActionType = "UpdateElementTags"
	ActionTypeRevertUpdateElementTags ActionType = "RevertUpdateElementTags"
	ActionTypeMoveNode                ActionType = "MoveNode"
	ActionTypeRevertMoveNode          ActionType = "RevertMoveNode"
	ActionTypeCreateNode              ActionType = "CreateNode"
	ActionTypeRevertCreateNode        ActionType = "RevertCreateNode"
)

// EditAction describes what one edit changes on one element. Actions are pure data:
// the set of actions is closed, and CreateUpdates switches over it. Actions are always used as values.
type EditAction interface {
	ActionType() ActionType
	editAction()
}

// DeletePoiNodeAction deletes a POI node. If the node is a vertex of a way or a member of a relation,
// it is not deleted but "degraded": its tags are removed.
//
// Deleting ways is not supported, because that would imply deleting all of their nodes
// that are not used elsewhere.
type DeletePoiNodeAction struct{}

// UpdateElementTagsAction changes the tags of an element
type UpdateElementTagsAction struct {
	Changes StringMapChanges
}

// RevertUpdateElementTagsAction undoes a previously uploaded UpdateElementTagsAction.
// Changes holds the reversed changes.
type RevertUpdateElementTagsAction struct {
	Changes StringMapChanges
}

type MoveNodeAction struct {
	Position ownmap.Position
}

// RevertMoveNodeAction moves a node back to where it was before a MoveNodeAction
type RevertMoveNodeAction struct {
	Position ownmap.Position
}

type CreateNodeAction struct {
	Position ownmap.Position
	Tags     ownmap.TagMap
}

// RevertCreateNodeAction deletes a node that was created by a CreateNodeAction
type RevertCreateNodeAction struct{}

func (DeletePoiNodeAction) ActionType() ActionType           { return ActionTypeDeletePoiNode }
func (UpdateElementTagsAction) ActionType() ActionType       { return ActionTypeUpdateElementTags }
func (RevertUpdateElementTagsAction) ActionType() ActionType { return ActionTypeRevertUpdateElementTags }
func (MoveNodeAction) ActionType() ActionType                { return ActionTypeMoveNode }
func (RevertMoveNodeAction) ActionType() ActionType          { return ActionTypeRevertMoveNode }
func (CreateNodeAction) ActionType() ActionType              { return ActionTypeCreateNode }
func (RevertCreateNodeAction) ActionType() ActionType        { return ActionTypeRevertCreateNode }

func (DeletePoiNodeAction) editAction()           {}
func (UpdateElementTagsAction) editAction()       {}
func (RevertUpdateElementTagsAction) editAction() {}
func (MoveNodeAction) editAction()                {}
func (RevertMoveNodeAction) editAction()          {}
func (CreateNodeAction) editAction()              {}
func (RevertCreateNodeAction) editAction()        {}

// IsRevertAction reports whether the action undoes an earlier contribution.
// Reverts are subtracted from the statistics instead of being counted.
func IsRevertAction(action EditAction) bool {
	switch action.(type) {
	case RevertUpdateElementTagsAction, RevertMoveNodeAction, RevertCreateNodeAction:
		return true
	default:
		return false
	}
}

// NewElementsCount is how many elements of each type an action creates
type NewElementsCount struct {
	Nodes, Ways, Relations int
}

func NewElementsCountFor(action EditAction) NewElementsCount {
	switch action.(type) {
	case CreateNodeAction:
		return NewElementsCount{Nodes: 1}
	default:
		return NewElementsCount{}
	}
}

// IsCreation reports whether the edit's element does not exist on the remote before the action is uploaded
func IsCreation(action EditAction) bool {
	return NewElementsCountFor(action) != NewElementsCount{}
}
