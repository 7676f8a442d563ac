package testmocks

import (
	"fmt"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/paulmach/osm"
)

// ExtractReader serves elements in the order they were given, the way a PBF extract would be scanned.
// Sizes are counted in elements instead of bytes.
type ExtractReader struct {
	objects []osm.Object
	index   int
	err     error

	// FailAfter makes Scan fail once that many elements have been read. 0 never fails.
	FailAfter int
}

func NewExtractReader(elements ...ownmap.Element) *ExtractReader {
	var objects []osm.Object
	for _, element := range elements {
		switch e := element.(type) {
		case *ownmap.Node:
			objects = append(objects, e.ToOSM())
		case *ownmap.Way:
			objects = append(objects, e.ToOSM())
		case *ownmap.Relation:
			objects = append(objects, e.ToOSM())
		default:
			panic(fmt.Sprintf("unsupported element: %T", element))
		}
	}

	return &ExtractReader{objects: objects, index: -1}
}

func (r *ExtractReader) Scan() bool {
	if r.FailAfter != 0 && r.index+1 >= r.FailAfter {
		r.err = fmt.Errorf("extract is truncated after %d elements", r.FailAfter)
		return false
	}

	if r.index+1 >= len(r.objects) {
		return false
	}

	r.index++
	return true
}

func (r *ExtractReader) Object() osm.Object {
	return r.objects[r.index]
}

func (r *ExtractReader) Err() error {
	return r.err
}

func (r *ExtractReader) Reset() errorsx.Error {
	r.index = -1
	r.err = nil
	return nil
}

func (r *ExtractReader) FullyScannedBytes() int64 {
	return int64(r.index + 1)
}

func (r *ExtractReader) TotalSize() int64 {
	return int64(len(r.objects))
}
