package ownmapedits

import (
	"context"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// MaxNodeMoveMeters is how far a node may have been moved by somebody else before a change of its tags is considered a conflict
const MaxNodeMoveMeters = 20

// MapDataRepository answers questions about the current state of the map data
type MapDataRepository interface {
	GetWaysForNode(ctx context.Context, nodeID int64) ([]*ownmap.Way, errorsx.Error)
	GetRelationsForNode(ctx context.Context, nodeID int64) ([]*ownmap.Relation, errorsx.Error)
}

// CreateUpdates computes the elements to upload for an action.
//
// original is the element as it was when the edit was made, current is the element as it is now on the remote.
// Both are nil for actions that create elements.
// A conflict error is returned if the action can no longer be applied to current.
func CreateUpdates(
	ctx context.Context,
	action EditAction,
	original, current ownmap.Element,
	repo MapDataRepository,
	ids *IDProvider,
) ([]ownmap.Element, errorsx.Error) {
	switch a := action.(type) {
	case DeletePoiNodeAction:
		return deletePoiNode(ctx, original, current, repo)
	case UpdateElementTagsAction:
		return updateElementTags(a.Changes, original, current)
	case RevertUpdateElementTagsAction:
		return updateElementTags(a.Changes, original, current)
	case MoveNodeAction:
		return moveNode(a.Position, original, current)
	case RevertMoveNodeAction:
		return moveNode(a.Position, original, current)
	case CreateNodeAction:
		return createNode(a, ids)
	case RevertCreateNodeAction:
		return revertCreateNode(ctx, original, current, repo)
	default:
		return nil, errorsx.Errorf("unknown edit action: %T", action)
	}
}

func asNode(element ownmap.Element) (*ownmap.Node, errorsx.Error) {
	node, ok := element.(*ownmap.Node)
	if !ok || node == nil {
		return nil, errorsx.Errorf("expected a node but got %T", element)
	}
	return node, nil
}

func checkNotChanged(original, current ownmap.Element) errorsx.Error {
	if original == nil || current == nil {
		return errorsx.Errorf("original and current element are required")
	}

	if current.GetVersion() > original.GetVersion() {
		return NewConflictError("%s changed: version %d is newer than %d", current.ElementKey(), current.GetVersion(), original.GetVersion())
	}

	return nil
}

func hasParents(ctx context.Context, repo MapDataRepository, nodeID int64) (bool, errorsx.Error) {
	ways, err := repo.GetWaysForNode(ctx, nodeID)
	if err != nil {
		return false, errorsx.Wrap(err)
	}

	if len(ways) != 0 {
		return true, nil
	}

	relations, err := repo.GetRelationsForNode(ctx, nodeID)
	if err != nil {
		return false, errorsx.Wrap(err)
	}

	return len(relations) != 0, nil
}

func deletePoiNode(ctx context.Context, original, current ownmap.Element, repo MapDataRepository) ([]ownmap.Element, errorsx.Error) {
	node, err := asNode(current)
	if err != nil {
		return nil, err
	}

	err = checkNotChanged(original, current)
	if err != nil {
		return nil, err
	}

	isReferenced, err := hasParents(ctx, repo, node.ID)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	node = node.Copy()
	if isReferenced {
		// vertex of a way or member of a relation: only remove what makes it a POI
		node.Tags = nil
	} else {
		node.Deleted = true
	}

	return []ownmap.Element{node}, nil
}

func isGeometrySubstantiallyDifferent(original, current ownmap.Element) bool {
	switch o := original.(type) {
	case *ownmap.Node:
		c, ok := current.(*ownmap.Node)
		if !ok {
			return true
		}
		return geo.Distance(orb.Point{o.Lon, o.Lat}, orb.Point{c.Lon, c.Lat}) > MaxNodeMoveMeters
	case *ownmap.Way:
		c, ok := current.(*ownmap.Way)
		if !ok {
			return true
		}
		if len(o.NodeIDs) == 0 || len(c.NodeIDs) == 0 {
			return len(o.NodeIDs) != len(c.NodeIDs)
		}
		// a way whose ends changed is not the same way anymore
		return o.NodeIDs[0] != c.NodeIDs[0] || o.NodeIDs[len(o.NodeIDs)-1] != c.NodeIDs[len(c.NodeIDs)-1]
	default:
		return false
	}
}

func updateElementTags(changes StringMapChanges, original, current ownmap.Element) ([]ownmap.Element, errorsx.Error) {
	if original == nil || current == nil {
		return nil, errorsx.Errorf("original and current element are required")
	}

	if current.GetVersion() > original.GetVersion() && isGeometrySubstantiallyDifferent(original, current) {
		return nil, NewConflictError("geometry of %s changed substantially", current.ElementKey())
	}

	if changes.ConflictsWith(current.GetTags()) {
		return nil, NewConflictError("tag changes conflict with the current tags of %s", current.ElementKey())
	}

	newTags := changes.ApplyTo(current.GetTags())

	switch c := current.(type) {
	case *ownmap.Node:
		node := c.Copy()
		node.Tags = newTags
		return []ownmap.Element{node}, nil
	case *ownmap.Way:
		way := c.Copy()
		way.Tags = newTags
		return []ownmap.Element{way}, nil
	case *ownmap.Relation:
		relation := c.Copy()
		relation.Tags = newTags
		return []ownmap.Element{relation}, nil
	default:
		return nil, errorsx.Errorf("unsupported element: %T", current)
	}
}

func moveNode(position ownmap.Position, original, current ownmap.Element) ([]ownmap.Element, errorsx.Error) {
	node, err := asNode(current)
	if err != nil {
		return nil, err
	}

	err = checkNotChanged(original, current)
	if err != nil {
		return nil, err
	}

	node = node.Copy()
	node.Lat = position.Lat
	node.Lon = position.Lon

	return []ownmap.Element{node}, nil
}

func createNode(action CreateNodeAction, ids *IDProvider) ([]ownmap.Element, errorsx.Error) {
	if ids == nil {
		return nil, errorsx.Errorf("an id provider is required to create elements")
	}

	id, err := ids.NextNodeID()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return []ownmap.Element{&ownmap.Node{
		ID:   id,
		Lat:  action.Position.Lat,
		Lon:  action.Position.Lon,
		Tags: action.Tags.Copy(),
	}}, nil
}

func revertCreateNode(ctx context.Context, original, current ownmap.Element, repo MapDataRepository) ([]ownmap.Element, errorsx.Error) {
	node, err := asNode(current)
	if err != nil {
		return nil, err
	}

	err = checkNotChanged(original, current)
	if err != nil {
		return nil, err
	}

	isReferenced, err := hasParents(ctx, repo, node.ID)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	if isReferenced {
		return nil, NewConflictError("created %s is now used by other elements", node.ElementKey())
	}

	node = node.Copy()
	node.Deleted = true

	return []ownmap.Element{node}, nil
}
