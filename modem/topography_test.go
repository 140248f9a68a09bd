/*
Copyright © 2026 the MTpy authors.
This file is part of MTpy.

MTpy is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

MTpy is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with MTpy.  If not, see <http://www.gnu.org/licenses/>.
*/

package modem

import (
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

// topoTestModel builds a 2x2x5 model by hand: two air layers over three
// earth layers, stations in three of the four columns.
func topoTestModel() *Model {
	d := NewData()
	d.Stations = StationList{
		{Name: "LAND", RelEast: -50, RelNorth: -50},
		{Name: "SEA", RelEast: 50, RelNorth: -50},
		{Name: "HILL", RelEast: -50, RelNorth: 50},
	}
	m := NewModel(d)
	m.NAirLayers = 2
	m.GridEast = []float64{-100, 0, 100}
	m.GridNorth = []float64{-100, 0, 100}
	m.GridZ = []float64{0, 10, 20, 30, 50, 80}
	m.NodesEast = diffs(m.GridEast)
	m.NodesNorth = diffs(m.GridNorth)
	m.NodesZ = diffs(m.GridZ)
	m.SeaLevel = m.GridZ[m.NAirLayers]
	return m
}

// topoTestSurface assigns a 30 m hill to the northwest column, a 25 m
// deep sea to the southeast one, and near-sea-level land elsewhere.
func topoTestSurface() *sparse.DenseArray {
	topo := sparse.ZerosDense(2, 2)
	topo.Set(30, 1, 0)  // hill
	topo.Set(-25, 0, 1) // sea
	topo.Set(5, 1, 1)
	topo.Set(0, 0, 0)
	return topo
}

func TestAddTopography(t *testing.T) {
	m := topoTestModel()
	m.SetSurface(TopographyName, topoTestSurface())
	if err := m.AddTopography(DefaultAirResistivity, DefaultSeaResistivity); err != nil {
		t.Fatal(err)
	}

	// The air layers are re-spaced to evenly cover the 30 m hill and
	// the earth layers keep their thicknesses below the new surface.
	wantGridZ := []float64{0, 15, 30, 40, 60, 90}
	for i, want := range wantGridZ {
		if math.Abs(m.GridZ[i]-want) > 1e-9 {
			t.Fatalf("GridZ = %v, want %v", m.GridZ, wantGridZ)
		}
	}
	if m.SeaLevel != 30 {
		t.Errorf("SeaLevel = %g, want 30", m.SeaLevel)
	}

	wantMask := map[[3]int]float64{
		// Hill column: ground at the top of the grid, no air.
		{1, 0, 0}: MaskEarth, {1, 0, 1}: MaskEarth, {1, 0, 2}: MaskEarth,
		{1, 0, 3}: MaskEarth, {1, 0, 4}: MaskEarth,
		// Sea column: air, then water down to the 25 m deep floor.
		{0, 1, 0}: MaskAir, {0, 1, 1}: MaskAir, {0, 1, 2}: MaskSea,
		{0, 1, 3}: MaskSea, {0, 1, 4}: MaskEarth,
		// Sea-level land: the two air layers only.
		{0, 0, 0}: MaskAir, {0, 0, 1}: MaskAir, {0, 0, 2}: MaskEarth,
		{0, 0, 3}: MaskEarth, {0, 0, 4}: MaskEarth,
		{1, 1, 0}: MaskAir, {1, 1, 1}: MaskAir, {1, 1, 2}: MaskEarth,
		{1, 1, 3}: MaskEarth, {1, 1, 4}: MaskEarth,
	}
	for idx, want := range wantMask {
		if got := m.CovMask.Get(idx[0], idx[1], idx[2]); got != want {
			t.Errorf("CovMask[%v] = %g, want %g", idx, got, want)
		}
	}

	// Resistivities follow the mask.
	if got := m.ResModel.Get(0, 1, 2); got != DefaultSeaResistivity {
		t.Errorf("sea cell resistivity = %g", got)
	}
	if got := m.ResModel.Get(0, 1, 0); got != DefaultAirResistivity {
		t.Errorf("air cell resistivity = %g", got)
	}
	if got := m.ResModel.Get(1, 0, 0); got != 100 {
		t.Errorf("hill top cell resistivity = %g, want 100", got)
	}

	// Stations drop onto the local surface: the sea floor, the first
	// cell below the air, or the top of the grid on the hill.
	if got := m.Data.Stations.Find("SEA").Elev; got != m.GridZ[3]+1 {
		t.Errorf("sea station elev = %g, want %g", got, m.GridZ[3]+1)
	}
	if got := m.Data.Stations.Find("LAND").Elev; got != m.GridZ[2]+1 {
		t.Errorf("land station elev = %g, want %g", got, m.GridZ[2]+1)
	}
	if got := m.Data.Stations.Find("HILL").Elev; got != m.GridZ[0]+1 {
		t.Errorf("hill station elev = %g, want %g", got, m.GridZ[0]+1)
	}
}

func TestAddTopographyWithoutSurface(t *testing.T) {
	m := topoTestModel()
	if err := m.AddTopography(DefaultAirResistivity, DefaultSeaResistivity); err == nil {
		t.Error("missing topography surface should be rejected")
	}
}

func TestAddTopographyDimensionMismatch(t *testing.T) {
	m := topoTestModel()
	m.SetSurface(TopographyName, sparse.ZerosDense(3, 3))
	if err := m.AddTopography(DefaultAirResistivity, DefaultSeaResistivity); err == nil {
		t.Error("a surface not matching the grid should be rejected")
	}
}

func TestAssignResistivityFromSurfaceBelow(t *testing.T) {
	m := topoTestModel()
	// A basement horizon 30 m below sea level everywhere.
	base := sparse.ZerosDense(2, 2)
	for i := range base.Elements {
		base.Elements[i] = -30
	}
	m.SetSurface("basement", base)
	if err := m.AssignResistivityFromSurface("basement", 1000, false); err != nil {
		t.Fatal(err)
	}
	// Cell centers below 50 m depth get the basement resistivity.
	if got := m.ResModel.Get(0, 0, 4); got != 1000 {
		t.Errorf("basement cell = %g, want 1000", got)
	}
	if got := m.ResModel.Get(0, 0, 3); got != 100 {
		t.Errorf("cell above the basement = %g, want 100", got)
	}
}

func TestCellIndex(t *testing.T) {
	grid := []float64{-100, 0, 100}
	if i, ok := cellIndex(grid, -50); !ok || i != 0 {
		t.Errorf("got (%d, %v), want (0, true)", i, ok)
	}
	if i, ok := cellIndex(grid, 50); !ok || i != 1 {
		t.Errorf("got (%d, %v), want (1, true)", i, ok)
	}
	if _, ok := cellIndex(grid, 150); ok {
		t.Error("a point beyond the grid should not be located")
	}
}
