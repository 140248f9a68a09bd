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
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// Resistivity scales accepted in model files.
const (
	ResScaleLogE   = "loge"
	ResScaleLog10  = "log10"
	ResScaleLinear = "linear"
)

// MeshParams controls the size and grading of the finite-difference
// mesh built around a station array.
type MeshParams struct {
	// CellSizeEast and CellSizeNorth are the horizontal cell widths in
	// the station area, meters.
	CellSizeEast  float64
	CellSizeNorth float64

	// PadEast, PadNorth, and PadZ are the number of padding cells
	// added beyond the station area in each direction.
	PadEast  int
	PadNorth int
	PadZ     int

	// PadStretchH and PadStretchV grade the padding cell widths.
	PadStretchH float64
	PadStretchV float64

	// Z1Layer is the thickness of the first layer, meters. It should
	// be about a tenth of the shortest skin depth of the data.
	Z1Layer float64

	// ZTargetDepth is the depth to which layers grow logarithmically,
	// and ZBottom the nominal full depth of the padded model, meters.
	ZTargetDepth float64
	ZBottom      float64

	// NLayers is the total number of vertical layers, including
	// padding and air layers.
	NLayers int

	// NAirLayers is the number of air layers above the ground surface
	// for runs with topography.
	NAirLayers int
}

// DefaultMeshParams returns the customary mesh defaults.
func DefaultMeshParams() MeshParams {
	return MeshParams{
		CellSizeEast:  500,
		CellSizeNorth: 500,
		PadEast:       7,
		PadNorth:      7,
		PadZ:          4,
		PadStretchH:   1.2,
		PadStretchV:   1.2,
		Z1Layer:       10,
		ZTargetDepth:  50000,
		ZBottom:       300000,
		NLayers:       30,
	}
}

// Model is a ModEM resistivity model: a rectilinear mesh centered on a
// station array and the resistivity of each cell.
//
// Grid coordinates are relative to the mesh center; the z axis is
// positive down from the top of the mesh, so with air layers the
// ground surface sits at depth SeaLevel.
type Model struct {
	MeshParams

	// Data supplies the station locations the mesh is built around and
	// receives center updates as the mesh is aligned.
	Data *Data

	Title    string
	ResScale string

	// MeshRotationAngle is recorded in the model file; ModEM itself
	// assumes an axis-aligned mesh, so rotation is normally applied to
	// the stations instead.
	MeshRotationAngle float64

	// GridEast, GridNorth are node positions relative to the mesh
	// center and GridZ node depths from the mesh top, all ascending.
	// The nodes slices hold the cell widths between them.
	GridEast, GridNorth, GridZ    []float64
	NodesEast, NodesNorth, NodesZ []float64

	// GridCenter is the model-file origin offset: {north, east, z}.
	GridCenter [3]float64

	// SeaLevel is the depth of the ground surface from the mesh top.
	SeaLevel float64

	// ResModel holds cell resistivities in ohm-m with dimensions
	// (north, east, z), index 0 southernmost, westernmost, shallowest.
	ResModel *sparse.DenseArray

	// CovMask classifies each cell for the model covariance:
	// 0 air, 1 normal earth, 9 sea water.
	CovMask *sparse.DenseArray

	// surfaces holds elevations interpolated onto the horizontal grid
	// by ProjectSurface, keyed by name, dimensions (north, east),
	// positive up from sea level.
	surfaces map[string]*sparse.DenseArray

	Log logrus.FieldLogger
}

// NewModel returns a model for the given station data with default
// mesh parameters.
func NewModel(data *Data) *Model {
	return &Model{
		MeshParams: DefaultMeshParams(),
		Data:       data,
		Title:      "Model File written by MTpy",
		ResScale:   ResScaleLogE,
	}
}

func (m *Model) log() logrus.FieldLogger {
	if m.Log == nil {
		return logrus.StandardLogger()
	}
	return m.Log
}

// MakeMesh builds the mesh around the stations.
//
// The station bounding box is extended by one and a half cells on each
// side, rounded to the nearest 100 m, and filled with uniform cells.
// The horizontal grids are then recentered on their mean; when the
// data are unrotated the survey center and relative station locations
// shift along so absolute positions are preserved. Padding cells grow
// by PadStretchH per step. Any station that lands within 2% of a cell
// width of a node pushes the node away so no station sits on a cell
// boundary. Vertical layers grow logarithmically from Z1Layer to
// ZTargetDepth, are padded below by PadZ graded layers, and topped by
// NAirLayers air layers of thickness Z1Layer.
func (m *Model) MakeMesh() error {
	if m.Data == nil || len(m.Data.Stations) == 0 {
		return fmt.Errorf("modem: mesh needs station locations")
	}
	nCore := m.NLayers - m.PadZ - m.NAirLayers + 1
	if nCore < 2 {
		return fmt.Errorf("modem: NLayers %d leaves no room for %d padding and "+
			"%d air layers", m.NLayers, m.PadZ, m.NAirLayers)
	}

	eastMin, eastMax, northMin, northMax, err := m.Data.Stations.Bounds()
	if err != nil {
		return err
	}

	west := roundTo(eastMin-m.CellSizeEast*3/2, 100)
	east := roundTo(eastMax+m.CellSizeEast*3/2, 100)
	south := roundTo(northMin-m.CellSizeNorth*3/2, 100)
	north := roundTo(northMax+m.CellSizeNorth*3/2, 100)

	eastGrid := gridRange(west, east+m.CellSizeEast, m.CellSizeEast)
	shift := floats.Sum(eastGrid) / float64(len(eastGrid))
	if m.Data.RotationAngle == 0 {
		m.Data.CenterEastNorth[0] -= shift
		for _, s := range m.Data.Stations {
			s.RelEast += shift
		}
	}
	floats.AddConst(-shift, eastGrid)
	eastGrid = padGrid(eastGrid, m.CellSizeEast, m.PadEast, m.PadStretchH)
	repairNodeCollisions(eastGrid, stationCoords(m.Data.Stations, false), m.CellSizeEast)

	northGrid := gridRange(south, north+m.CellSizeNorth, m.CellSizeNorth)
	shift = floats.Sum(northGrid) / float64(len(northGrid))
	if m.Data.RotationAngle == 0 {
		m.Data.CenterEastNorth[1] -= shift
		for _, s := range m.Data.Stations {
			s.RelNorth += shift
		}
	}
	floats.AddConst(-shift, northGrid)
	northGrid = padGrid(northGrid, m.CellSizeNorth, m.PadNorth, m.PadStretchH)
	repairNodeCollisions(northGrid, stationCoords(m.Data.Stations, true), m.CellSizeNorth)

	// Vertical layer thicknesses: log-spaced to the target depth,
	// rounded down to one significant figure.
	logZ := make([]float64, nCore)
	floats.LogSpan(logZ, m.Z1Layer, m.ZTargetDepth)
	zNodes := make([]float64, 0, m.NLayers)
	for _, zz := range logZ {
		zNodes = append(zNodes, zz-math.Mod(zz, math.Pow(10, math.Floor(math.Log10(zz)))))
	}
	z0 := zNodes[len(zNodes)-1]
	for ii := 1; ii <= m.PadZ; ii++ {
		zNodes = append(zNodes, roundTo(z0*m.PadStretchV*float64(ii), 100))
	}
	air := make([]float64, m.NAirLayers)
	for i := range air {
		air[i] = m.Z1Layer
	}
	zNodes = append(air, zNodes...)

	zGrid := make([]float64, len(zNodes)+1)
	for i, t := range zNodes {
		zGrid[i+1] = zGrid[i] + t
	}
	m.SeaLevel = zGrid[m.NAirLayers]

	m.GridEast, m.GridNorth, m.GridZ = eastGrid, northGrid, zGrid
	m.NodesEast = diffs(eastGrid)
	m.NodesNorth = diffs(northGrid)
	m.NodesZ = zNodes
	m.GridCenter = [3]float64{
		-absSum(m.NodesNorth) / 2,
		-absSum(m.NodesEast) / 2,
		0,
	}

	// The survey center moved with the grid; refresh its geographic
	// counterpart for the data file.
	m.Data.updateCenterLonLat()

	m.log().WithFields(logrus.Fields{
		"stations": len(m.Data.Stations),
		"nEast":    len(m.NodesEast),
		"nNorth":   len(m.NodesNorth),
		"nZ":       len(m.NodesZ),
		"extentEW": absSum(m.NodesEast),
		"extentNS": absSum(m.NodesNorth),
		"depth":    absSum(m.NodesZ),
	}).Info("built model mesh")
	return nil
}

// gridRange is a half-open arithmetic range [start, stop) with the
// given step.
func gridRange(start, stop, step float64) []float64 {
	n := int(math.Ceil((stop - start) / step))
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func padGrid(grid []float64, cellSize float64, pads int, stretch float64) []float64 {
	for ii := 1; ii <= pads; ii++ {
		addSize := roundTo(cellSize*stretch*float64(ii), 100)
		lo := grid[0] - addSize
		hi := grid[len(grid)-1] + addSize
		grid = append([]float64{lo}, grid...)
		grid = append(grid, hi)
	}
	return grid
}

func stationCoords(sts StationList, north bool) []float64 {
	out := make([]float64, len(sts))
	for i, s := range sts {
		if north {
			out[i] = s.RelNorth
		} else {
			out[i] = s.RelEast
		}
	}
	sort.Float64s(out)
	return out
}

// repairNodeCollisions nudges any node that a station sits within 2% of
// a cell width of, so no station lies on a cell boundary.
func repairNodeCollisions(grid []float64, stations []float64, cellSize float64) {
	tol := 0.02 * cellSize
	for _, s := range stations {
		for i, node := range grid {
			if math.Abs(s-node) < tol {
				if s > node {
					grid[i] -= tol
				} else if s < node {
					grid[i] += tol
				}
				break
			}
		}
	}
}

func diffs(grid []float64) []float64 {
	out := make([]float64, len(grid)-1)
	for i := range out {
		out[i] = grid[i+1] - grid[i]
	}
	return out
}

func absSum(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += math.Abs(v)
	}
	return sum
}

// cellCenters returns the midpoints of consecutive grid nodes.
func cellCenters(grid []float64) []float64 {
	out := make([]float64, len(grid)-1)
	for i := range out {
		out[i] = (grid[i] + grid[i+1]) / 2
	}
	return out
}

// WriteFile writes the resistivity model to path.
func (m *Model) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("modem: creating model file: %v", err)
	}
	defer f.Close()
	if err := m.Write(f); err != nil {
		return err
	}
	m.log().WithFields(logrus.Fields{"file": path}).Info("wrote ModEM model file")
	return f.Close()
}

// Write writes the mesh and resistivities as a ModEM model file. The
// first row of each layer block is the northernmost; a nil ResModel
// writes a uniform 100 ohm-m halfspace.
func (m *Model) Write(w io.Writer) error {
	nNorth, nEast, nZ := len(m.NodesNorth), len(m.NodesEast), len(m.NodesZ)
	if nNorth == 0 || nEast == 0 || nZ == 0 {
		return fmt.Errorf("modem: no mesh to write; call MakeMesh first")
	}
	if m.ResModel == nil {
		m.ResModel = sparse.ZerosDense(nNorth, nEast, nZ)
		for i := range m.ResModel.Elements {
			m.ResModel.Elements[i] = 100
		}
	}

	transform := func(v float64) float64 { return v }
	switch m.ResScale {
	case ResScaleLogE:
		transform = math.Log
	case ResScaleLog10, "log":
		transform = math.Log10
	case ResScaleLinear:
	default:
		return fmt.Errorf("modem: unrecognized resistivity scale %q", m.ResScale)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %s\n", strings.ToUpper(m.Title))
	fmt.Fprintf(bw, "%5d%5d%5d%5d %s\n", nNorth, nEast, nZ, 0,
		strings.ToUpper(m.ResScale))

	writeNodeLine(bw, m.NodesNorth)
	writeNodeLine(bw, m.NodesEast)
	writeNodeLine(bw, m.NodesZ)

	for zz := 0; zz < nZ; zz++ {
		fmt.Fprint(bw, "\n")
		for ee := 0; ee < nEast; ee++ {
			for nn := 0; nn < nNorth; nn++ {
				fmt.Fprintf(bw, "%13.5E", transform(m.ResModel.Get(nNorth-1-nn, ee, zz)))
			}
			fmt.Fprint(bw, "\n")
		}
	}

	fmt.Fprintf(bw, "\n%16.3f%16.3f%16.3f\n",
		m.GridCenter[0], m.GridCenter[1], m.GridCenter[2])
	fmt.Fprintf(bw, "%9.3f\n", m.MeshRotationAngle)
	return bw.Flush()
}

func writeNodeLine(w io.Writer, nodes []float64) {
	for _, n := range nodes {
		fmt.Fprintf(w, "%12.3f", math.Abs(n))
	}
	fmt.Fprint(w, "\n")
}

// ReadFile reads a ModEM model file from path.
func (m *Model) ReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("modem: opening model file: %v", err)
	}
	defer f.Close()
	return m.Read(f)
}

// Read reads a ModEM model file, restoring the mesh, resistivities in
// linear ohm-m, grid center, and rotation angle.
func (m *Model) Read(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("modem: reading model file: %v", err)
	}
	if len(lines) < 6 {
		return fmt.Errorf("modem: model file too short")
	}

	m.Title = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[0]), "#"))

	dims := strings.Fields(lines[1])
	if len(dims) < 5 {
		return fmt.Errorf("modem: malformed model dimension line %q", lines[1])
	}
	nNorth, err0 := strconv.Atoi(dims[0])
	nEast, err1 := strconv.Atoi(dims[1])
	nZ, err2 := strconv.Atoi(dims[2])
	if err0 != nil || err1 != nil || err2 != nil {
		return fmt.Errorf("modem: malformed model dimension line %q", lines[1])
	}
	scale := strings.ToLower(dims[4])

	if m.NodesNorth, err0 = parseFloats(lines[2]); err0 != nil {
		return err0
	}
	if m.NodesEast, err0 = parseFloats(lines[3]); err0 != nil {
		return err0
	}
	if m.NodesZ, err0 = parseFloats(lines[4]); err0 != nil {
		return err0
	}
	if len(m.NodesNorth) != nNorth || len(m.NodesEast) != nEast || len(m.NodesZ) != nZ {
		return fmt.Errorf("modem: node counts disagree with dimensions %dx%dx%d",
			nNorth, nEast, nZ)
	}

	m.ResModel = sparse.ZerosDense(nNorth, nEast, nZ)
	countZ, countE := 0, 0
	li := 5
	for ; li < len(lines) && countZ < nZ; li++ {
		fields := strings.Fields(lines[li])
		if len(fields) == 0 {
			continue
		}
		if len(fields) != nNorth {
			return fmt.Errorf("modem: layer %d row %d has %d values, want %d",
				countZ, countE, len(fields), nNorth)
		}
		// Rows run north to south in the file.
		for k, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return fmt.Errorf("modem: malformed resistivity %q: %v", f, err)
			}
			m.ResModel.Set(v, nNorth-1-k, countE, countZ)
		}
		countE++
		if countE == nEast {
			countE = 0
			countZ++
		}
	}
	if countZ != nZ {
		return fmt.Errorf("modem: model file ends after layer %d of %d", countZ, nZ)
	}

	haveCenter := false
	for ; li < len(lines); li++ {
		fields := strings.Fields(lines[li])
		switch len(fields) {
		case 3:
			for i, f := range fields {
				v, err := strconv.ParseFloat(f, 64)
				if err != nil {
					return fmt.Errorf("modem: malformed grid center %q: %v", lines[li], err)
				}
				m.GridCenter[i] = v
			}
			haveCenter = true
		case 1:
			v, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return fmt.Errorf("modem: malformed rotation angle %q: %v", lines[li], err)
			}
			m.MeshRotationAngle = v
		}
	}

	switch scale {
	case ResScaleLogE:
		for i, v := range m.ResModel.Elements {
			m.ResModel.Elements[i] = math.Exp(v)
		}
	case ResScaleLog10, "log":
		for i, v := range m.ResModel.Elements {
			m.ResModel.Elements[i] = math.Pow(10, v)
		}
	}
	m.ResScale = ResScaleLogE

	cum := func(nodes []float64) []float64 {
		out := make([]float64, len(nodes)+1)
		for i, n := range nodes {
			out[i+1] = out[i] + n
		}
		return out
	}
	m.GridNorth = cum(m.NodesNorth)
	m.GridEast = cum(m.NodesEast)
	m.GridZ = cum(m.NodesZ)
	if haveCenter {
		floats.AddConst(m.GridCenter[0], m.GridNorth)
		floats.AddConst(m.GridCenter[1], m.GridEast)
		floats.AddConst(m.GridCenter[2], m.GridZ)
	}
	return nil
}

func parseFloats(line string) ([]float64, error) {
	fields := strings.Fields(line)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("modem: malformed node width %q: %v", f, err)
		}
		out[i] = v
	}
	return out, nil
}
