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
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/ctessum/sparse"
)

func meshTestData() *Data {
	d := NewData()
	d.Stations = StationList{
		{Name: "MT001", RelEast: 0, RelNorth: 0},
		{Name: "MT002", RelEast: 1200, RelNorth: 800},
		{Name: "MT003", RelEast: -900, RelNorth: -400},
	}
	return d
}

func TestMakeMesh(t *testing.T) {
	m := NewModel(meshTestData())
	if err := m.MakeMesh(); err != nil {
		t.Fatal(err)
	}

	for _, grid := range [][]float64{m.GridEast, m.GridNorth, m.GridZ} {
		for i := 1; i < len(grid); i++ {
			if grid[i] <= grid[i-1] {
				t.Fatalf("grid not ascending at %d: %v", i, grid)
			}
		}
	}
	if len(m.NodesEast) != len(m.GridEast)-1 ||
		len(m.NodesNorth) != len(m.GridNorth)-1 ||
		len(m.NodesZ) != len(m.GridZ)-1 {
		t.Error("node counts disagree with grid node positions")
	}

	// NLayers core layers plus the extra one the log spacing yields.
	if len(m.NodesZ) != m.NLayers+1 {
		t.Errorf("got %d vertical layers, want %d", len(m.NodesZ), m.NLayers+1)
	}
	if m.GridZ[0] != 0 {
		t.Errorf("GridZ starts at %g, want 0", m.GridZ[0])
	}
	if m.SeaLevel != 0 {
		t.Errorf("SeaLevel = %g, want 0 without air layers", m.SeaLevel)
	}
	if m.NodesZ[0] != m.Z1Layer {
		t.Errorf("first layer is %g m thick, want %g", m.NodesZ[0], m.Z1Layer)
	}

	// Every station stays inside the grid and off the cell boundaries.
	for _, s := range m.Data.Stations {
		if s.RelEast <= m.GridEast[0] || s.RelEast >= m.GridEast[len(m.GridEast)-1] {
			t.Errorf("station %s easting %g outside grid", s.Name, s.RelEast)
		}
		if s.RelNorth <= m.GridNorth[0] || s.RelNorth >= m.GridNorth[len(m.GridNorth)-1] {
			t.Errorf("station %s northing %g outside grid", s.Name, s.RelNorth)
		}
		for _, node := range m.GridEast {
			if d := math.Abs(s.RelEast - node); d < 0.02*m.CellSizeEast*0.999 {
				t.Errorf("station %s is %g m from an east node", s.Name, d)
			}
		}
		for _, node := range m.GridNorth {
			if d := math.Abs(s.RelNorth - node); d < 0.02*m.CellSizeNorth*0.999 {
				t.Errorf("station %s is %g m from a north node", s.Name, d)
			}
		}
	}

	if want := -absSum(m.NodesNorth) / 2; m.GridCenter[0] != want {
		t.Errorf("GridCenter north = %g, want %g", m.GridCenter[0], want)
	}
	if want := -absSum(m.NodesEast) / 2; m.GridCenter[1] != want {
		t.Errorf("GridCenter east = %g, want %g", m.GridCenter[1], want)
	}
	if m.GridCenter[2] != 0 {
		t.Errorf("GridCenter z = %g, want 0", m.GridCenter[2])
	}
}

func TestMakeMeshPadding(t *testing.T) {
	m := NewModel(meshTestData())
	m.PadEast = 3
	m.PadNorth = 2
	if err := m.MakeMesh(); err != nil {
		t.Fatal(err)
	}
	// Padding cell widths grow toward the grid edges.
	for i := 0; i < m.PadEast-1; i++ {
		if m.NodesEast[i] <= m.NodesEast[i+1] {
			t.Errorf("west padding not decreasing inward: %v", m.NodesEast[:m.PadEast])
		}
	}
	n := len(m.NodesEast)
	for i := n - m.PadEast; i < n-1; i++ {
		if m.NodesEast[i] >= m.NodesEast[i+1] {
			t.Errorf("east padding not increasing outward: %v", m.NodesEast[n-m.PadEast:])
		}
	}
}

func TestMakeMeshRecenters(t *testing.T) {
	d := meshTestData()
	d.CenterEastNorth = [2]float64{500000, 6000000}
	absEast := make([]float64, len(d.Stations))
	absNorth := make([]float64, len(d.Stations))
	for i, s := range d.Stations {
		absEast[i] = d.CenterEastNorth[0] + s.RelEast
		absNorth[i] = d.CenterEastNorth[1] + s.RelNorth
	}

	m := NewModel(d)
	if err := m.MakeMesh(); err != nil {
		t.Fatal(err)
	}
	// Unrotated data shift the survey center with the grid, so absolute
	// station positions are preserved.
	for i, s := range d.Stations {
		if got := d.CenterEastNorth[0] + s.RelEast; math.Abs(got-absEast[i]) > 1e-6 {
			t.Errorf("station %s absolute easting moved from %g to %g",
				s.Name, absEast[i], got)
		}
		if got := d.CenterEastNorth[1] + s.RelNorth; math.Abs(got-absNorth[i]) > 1e-6 {
			t.Errorf("station %s absolute northing moved from %g to %g",
				s.Name, absNorth[i], got)
		}
	}
}

func TestMakeMeshTooFewLayers(t *testing.T) {
	m := NewModel(meshTestData())
	m.NLayers = 5
	m.PadZ = 4
	m.NAirLayers = 2
	if err := m.MakeMesh(); err == nil {
		t.Error("a layer count with no room for core layers should be rejected")
	}
}

func TestModelWriteRoundTrip(t *testing.T) {
	m := &Model{
		MeshParams: DefaultMeshParams(),
		Title:      "Model File written by MTpy",
		ResScale:   ResScaleLogE,
		NodesNorth: []float64{100, 200},
		NodesEast:  []float64{100, 100, 100},
		NodesZ:     []float64{10, 20},
		GridCenter: [3]float64{-150, -150, 0},
	}
	m.ResModel = sparse.ZerosDense(2, 3, 2)
	v := 1.0
	for i := range m.ResModel.Elements {
		m.ResModel.Elements[i] = v
		v *= 2
	}

	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatal(err)
	}

	got := new(Model)
	if err := got.Read(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatal(err)
	}

	if got.Title != strings.ToUpper(m.Title) {
		t.Errorf("Title = %q", got.Title)
	}
	for i, want := range m.NodesNorth {
		if got.NodesNorth[i] != want {
			t.Errorf("NodesNorth = %v, want %v", got.NodesNorth, m.NodesNorth)
		}
	}
	for i, want := range m.NodesZ {
		if got.NodesZ[i] != want {
			t.Errorf("NodesZ = %v, want %v", got.NodesZ, m.NodesZ)
		}
	}
	if got.GridCenter != m.GridCenter {
		t.Errorf("GridCenter = %v, want %v", got.GridCenter, m.GridCenter)
	}
	for i, want := range m.ResModel.Elements {
		if rel := math.Abs(got.ResModel.Elements[i]-want) / want; rel > 1e-3 {
			t.Errorf("resistivity %d = %g, want %g",
				i, got.ResModel.Elements[i], want)
		}
	}
	// The grids are reconstructed from the cell widths and center.
	if got.GridNorth[0] != -150 || got.GridNorth[2] != 150 {
		t.Errorf("GridNorth = %v", got.GridNorth)
	}
	if got.GridZ[0] != 0 || got.GridZ[2] != 30 {
		t.Errorf("GridZ = %v", got.GridZ)
	}
}

func TestModelWriteUniformDefault(t *testing.T) {
	m := &Model{
		MeshParams: DefaultMeshParams(),
		Title:      "halfspace",
		ResScale:   ResScaleLinear,
		NodesNorth: []float64{100},
		NodesEast:  []float64{100},
		NodesZ:     []float64{10},
	}
	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "LINEAR") {
		t.Error("resistivity scale missing from the dimension line")
	}
	if !strings.Contains(buf.String(), "1.00000E+02") {
		t.Error("default halfspace resistivity missing")
	}
}

func TestModelWriteRowOrder(t *testing.T) {
	m := &Model{
		MeshParams: DefaultMeshParams(),
		Title:      "t",
		ResScale:   ResScaleLinear,
		NodesNorth: []float64{100, 100},
		NodesEast:  []float64{100},
		NodesZ:     []float64{10},
	}
	m.ResModel = sparse.ZerosDense(2, 1, 1)
	m.ResModel.Set(10, 0, 0, 0) // south
	m.ResModel.Set(20, 1, 0, 0) // north

	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatal(err)
	}
	// The first value of a layer row is the northernmost cell.
	iNorth := strings.Index(buf.String(), "2.00000E+01")
	iSouth := strings.Index(buf.String(), "1.00000E+01")
	if iNorth < 0 || iSouth < 0 || iNorth > iSouth {
		t.Errorf("rows not written north to south:\n%s", buf.String())
	}
}

func TestModelWriteNoMesh(t *testing.T) {
	m := new(Model)
	if err := m.Write(&bytes.Buffer{}); err == nil {
		t.Error("writing without a mesh should be rejected")
	}
}
