package ownmapdal

import (
	"context"
	"io"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

// PBFReader scans the objects of an extract, nodes first, then ways, then relations
type PBFReader interface {
	Scan() bool
	Object() osm.Object
	Err() error
	Reset() errorsx.Error
	FullyScannedBytes() int64
	TotalSize() int64
}

type DefaultPBFReader struct {
	file gofs.File
	*osmpbf.Scanner
	totalSize int64
}

func NewDefaultPBFReader(file gofs.File) (*DefaultPBFReader, errorsx.Error) {
	fileInfo, err := file.Stat()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	osmPBFReader := osmpbf.New(context.Background(), file, runtime.NumCPU())

	return &DefaultPBFReader{file, osmPBFReader, fileInfo.Size()}, nil
}

func (r *DefaultPBFReader) TotalSize() int64 {
	return r.totalSize
}

func (r *DefaultPBFReader) Reset() errorsx.Error {
	err := r.Scanner.Close()
	if err != nil {
		return errorsx.Wrap(err)
	}
	_, err = r.file.Seek(0, io.SeekStart)
	if err != nil {
		return errorsx.Wrap(err)
	}
	r.Scanner = osmpbf.New(context.Background(), r.file, runtime.NumCPU())
	return nil
}

// ElementPutter stores elements as they are on the remote
type ElementPutter interface {
	Put(ctx context.Context, elements ...ownmap.Element) errorsx.Error
}

type ImportRunType struct {
	Bounds           osm.Bounds
	MaxItemsPerBatch uint64
}

func (importRun *ImportRunType) Validate() errorsx.Error {
	if importRun.MaxItemsPerBatch == 0 {
		return errorsx.Errorf("no MaxItemsPerBatch specified")
	}

	zeroBounds := osm.Bounds{}
	if importRun.Bounds == zeroBounds {
		return errorsx.Errorf("bounds not set")
	}

	return nil
}

type ImportStats struct {
	Nodes, Ways, Relations uint64
}

type importState struct {
	importRun *ImportRunType
	stats     ImportStats
	// node ids are kept to decide whether a way touches the bounds
	keptNodeIDs map[int64]bool
	keptWayIDs  map[int64]bool
	batch       []ownmap.Element
}

type scanObjectFunc func(obj osm.Object) errorsx.Error

// ImportMapData seeds the map data cache from a PBF extract.
// Nodes inside the bounds are imported, plus the ways and relations that reference them.
// Extracts are sorted nodes, then ways, then relations, so one pass is enough.
func ImportMapData(ctx context.Context, logger *logpkg.Logger, pbfReader PBFReader, importRun *ImportRunType, cache ElementPutter) (*ImportStats, errorsx.Error) {
	err := importRun.Validate()
	if err != nil {
		return nil, err
	}

	state := &importState{
		importRun:   importRun,
		keptNodeIDs: make(map[int64]bool),
		keptWayIDs:  make(map[int64]bool),
	}

	for {
		if ctx.Err() != nil {
			return nil, errorsx.Wrap(ctx.Err())
		}

		hasMore, err := scanBatch(pbfReader, importRun, state.scanObject)
		if err != nil {
			return nil, err
		}

		err = cache.Put(ctx, state.batch...)
		if err != nil {
			return nil, err
		}
		state.batch = nil

		logger.Info(
			"imported %s of %s (%d nodes, %d ways, %d relations)",
			humanize.Bytes(uint64(pbfReader.FullyScannedBytes())),
			humanize.Bytes(uint64(pbfReader.TotalSize())),
			state.stats.Nodes,
			state.stats.Ways,
			state.stats.Relations,
		)

		if !hasMore {
			return &state.stats, nil
		}
	}
}

func (s *importState) scanObject(obj osm.Object) errorsx.Error {
	switch o := obj.(type) {
	case *osm.Node:
		node := ownmap.NodeFromOSM(o)
		if !ownmap.IsInBounds(s.importRun.Bounds, node.Position()) {
			return nil
		}
		s.keptNodeIDs[node.ID] = true
		s.stats.Nodes++
		s.batch = append(s.batch, node)
	case *osm.Way:
		if !s.anyNodeKept(o.Nodes.NodeIDs()) {
			return nil
		}
		way := ownmap.WayFromOSM(o)
		s.keptWayIDs[way.ID] = true
		s.stats.Ways++
		s.batch = append(s.batch, way)
	case *osm.Relation:
		if !s.anyMemberKept(o.Members) {
			return nil
		}
		relation, err := ownmap.RelationFromOSM(o)
		if err != nil {
			return err
		}
		s.stats.Relations++
		s.batch = append(s.batch, relation)
	case *osm.Changeset:
		// not map data
	default:
		return errorsx.Errorf("unknown object type: %T", obj)
	}

	return nil
}

func (s *importState) anyNodeKept(nodeIDs []osm.NodeID) bool {
	for _, nodeID := range nodeIDs {
		if s.keptNodeIDs[int64(nodeID)] {
			return true
		}
	}
	return false
}

func (s *importState) anyMemberKept(members osm.Members) bool {
	for _, member := range members {
		switch member.Type {
		case osm.TypeNode:
			if s.keptNodeIDs[member.Ref] {
				return true
			}
		case osm.TypeWay:
			if s.keptWayIDs[member.Ref] {
				return true
			}
		}
	}
	return false
}

// scanBatch returns (reader has more objects to scan, error)
func scanBatch(
	pbfReader PBFReader,
	importRun *ImportRunType,
	scanObject scanObjectFunc,
) (bool, errorsx.Error) {
	var err error

	// scan batch
	for i := uint64(0); i < importRun.MaxItemsPerBatch; i++ {
		cont := pbfReader.Scan()
		if !cont {
			if pbfReader.Err() != nil {
				return false, errorsx.Wrap(pbfReader.Err())
			}
			return false, nil
		}

		err = scanObject(pbfReader.Object())
		if err != nil {
			return false, errorsx.Wrap(err)
		}
	}

	if pbfReader.Err() != nil {
		return false, errorsx.Wrap(pbfReader.Err())
	}

	return true, nil
}
