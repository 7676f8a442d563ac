package ownmapdal

import (
	"testing"

	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegion(t *testing.T) {
	region, err := ParseRegion("oslo:10.6,59.8,10.9,60.0")
	require.Nil(t, err)
	assert.Equal(t, &Region{
		Name:   "oslo",
		Bounds: osm.Bounds{MinLon: 10.6, MinLat: 59.8, MaxLon: 10.9, MaxLat: 60},
	}, region)

	for _, bad := range []string{"oslo", ":1,2,3,4", "oslo:1,2,3", "oslo:a,2,3,4", "oslo:3,2,1,4"} {
		_, err := ParseRegion(bad)
		assert.NotNil(t, err, bad)
	}
}

func TestRegionSet_GetRegionNameForPosition(t *testing.T) {
	norway := &Region{Name: "norway", Bounds: osm.Bounds{MinLon: 4, MinLat: 57, MaxLon: 31, MaxLat: 71}}
	oslo := &Region{Name: "oslo", Bounds: osm.Bounds{MinLon: 10.6, MinLat: 59.8, MaxLon: 10.9, MaxLat: 60}}

	rs := NewRegionSet([]*Region{norway})
	rs.AddRegion(oslo)

	assert.Equal(t, "oslo", rs.GetRegionNameForPosition(ownmap.Position{Lat: 59.91, Lon: 10.75}))
	assert.Equal(t, "norway", rs.GetRegionNameForPosition(ownmap.Position{Lat: 63.4, Lon: 10.4}))
	assert.Equal(t, "", rs.GetRegionNameForPosition(ownmap.Position{Lat: 0, Lon: 0}))

	var nilSet *RegionSet
	assert.Equal(t, "", nilSet.GetRegionNameForPosition(ownmap.Position{}))
}
