package ownmapdal

import (
	"strconv"
	"strings"
	"sync"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/paulmach/osm"
)

// Region is a named area that contributions are counted in
type Region struct {
	Name   string
	Bounds osm.Bounds
}

func (r *Region) area() float64 {
	return (r.Bounds.MaxLat - r.Bounds.MinLat) * (r.Bounds.MaxLon - r.Bounds.MinLon)
}

type RegionSet struct {
	regions []*Region
	mu      *sync.RWMutex
}

func NewRegionSet(regions []*Region) *RegionSet {
	return &RegionSet{regions, new(sync.RWMutex)}
}

func (rs *RegionSet) GetRegions() []*Region {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.regions
}

func (rs *RegionSet) AddRegion(region *Region) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.regions = append(rs.regions, region)
}

// GetRegionNameForPosition returns the name of the smallest region containing the position,
// or an empty string if no region contains it
func (rs *RegionSet) GetRegionNameForPosition(position ownmap.Position) string {
	if rs == nil {
		return ""
	}

	var chosen *Region
	for _, region := range rs.GetRegions() {
		if !ownmap.IsInBounds(region.Bounds, position) {
			continue
		}

		if chosen == nil || region.area() < chosen.area() {
			chosen = region
		}
	}

	if chosen == nil {
		return ""
	}
	return chosen.Name
}

// ParseRegion parses a region definition of the form "name:W,S,E,N". Example: "oslo:10.6,59.8,10.9,60.0"
func ParseRegion(definition string) (*Region, errorsx.Error) {
	idx := strings.LastIndex(definition, ":")
	if idx <= 0 {
		return nil, errorsx.Errorf("expected region in the form 'name:W,S,E,N' but got %q", definition)
	}

	boundsStrs := strings.Split(definition[idx+1:], ",")
	if len(boundsStrs) != 4 {
		return nil, errorsx.Errorf("expected 4 bounds, but found %d", len(boundsStrs))
	}

	var values [4]float64
	for i, boundStr := range boundsStrs {
		value, err := strconv.ParseFloat(strings.TrimSpace(boundStr), 64)
		if err != nil {
			return nil, errorsx.Wrap(err, "region", definition)
		}
		values[i] = value
	}

	bounds := osm.Bounds{
		MinLon: values[0],
		MinLat: values[1],
		MaxLon: values[2],
		MaxLat: values[3],
	}

	if bounds.MinLat > bounds.MaxLat || bounds.MinLon > bounds.MaxLon {
		return nil, errorsx.Errorf("region %q: min bounds are larger than max bounds", definition)
	}

	return &Region{Name: definition[:idx], Bounds: bounds}, nil
}
