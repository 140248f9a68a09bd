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
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// Default resistivities for the cell classes topography introduces,
// ohm-m.
const (
	DefaultAirResistivity = 1e17
	DefaultSeaResistivity = 0.3
)

// Covariance mask codes.
const (
	MaskAir   = 0
	MaskEarth = 1
	MaskSea   = 9
)

// TopographyName is the surface key AddTopography reads.
const TopographyName = "topography"

// SetSurface stores an elevation grid already sampled on the model's
// horizontal cells, dimensions (north, east), positive up.
func (m *Model) SetSurface(name string, elev *sparse.DenseArray) {
	if m.surfaces == nil {
		m.surfaces = map[string]*sparse.DenseArray{}
	}
	m.surfaces[name] = elev
}

// SurfaceGrid returns the stored surface with the given name, or nil.
func (m *Model) SurfaceGrid(name string) *sparse.DenseArray {
	return m.surfaces[name]
}

// ProjectSurface samples a geographic surface onto the centers of the
// model's horizontal cells and stores the result under name. Each cell
// center is converted back to geographic coordinates through the
// survey projection and the surface is sampled there with the given
// interpolation method.
func (m *Model) ProjectSurface(surf *Surface, name, method string) error {
	if len(m.GridEast) == 0 || len(m.GridNorth) == 0 {
		return fmt.Errorf("modem: no mesh to project surface onto; call MakeMesh first")
	}

	// Recover the absolute position of the grid from the stations.
	x0 := medianOffset(m.Data.Stations, false)
	y0 := medianOffset(m.Data.Stations, true)
	xg := cellCenters(m.GridEast)
	yg := cellCenters(m.GridNorth)

	toGeo, err := m.gridToLonLat()
	if err != nil {
		return err
	}

	elev := sparse.ZerosDense(len(yg), len(xg))
	for j, y := range yg {
		for i, x := range xg {
			lon, lat, err := toGeo(x+x0, y+y0)
			if err != nil {
				return fmt.Errorf("modem: locating model cell (%d, %d): %v", j, i, err)
			}
			v, err := surf.Sample(lon, lat, method)
			if err != nil {
				return err
			}
			elev.Set(v, j, i)
		}
	}
	m.SetSurface(name, elev)
	m.log().WithFields(logrus.Fields{"surface": name, "method": method}).
		Info("projected surface onto model grid")
	return nil
}

// gridToLonLat returns a function converting projected survey
// coordinates to geographic ones.
func (m *Model) gridToLonLat() (func(x, y float64) (lon, lat float64, err error), error) {
	if m.Data.EPSG != 0 {
		trans, err := m.Data.newTransform(m.Data.EPSG, longLatProjDef)
		if err != nil {
			return nil, err
		}
		return func(x, y float64) (float64, float64, error) {
			g, err := geom.Point{X: x, Y: y}.Transform(trans)
			if err != nil {
				return 0, 0, err
			}
			p := g.(geom.Point)
			return p.X, p.Y, nil
		}, nil
	}
	if m.Data.UTMZone == "" {
		return nil, fmt.Errorf("modem: no projection available; set EPSG or project stations first")
	}
	zone := m.Data.UTMZone
	return func(x, y float64) (float64, float64, error) {
		lat, lon, err := UTMToLatLon(EllipsoidWGS84, zone, x, y)
		return lon, lat, err
	}, nil
}

// medianOffset returns the median difference between absolute and
// grid-relative station coordinates along one axis.
func medianOffset(sts StationList, north bool) float64 {
	vals := make([]float64, 0, len(sts))
	for _, s := range sts {
		if north {
			vals = append(vals, s.North-s.RelNorth)
		} else {
			vals = append(vals, s.East-s.RelEast)
		}
	}
	sort.Float64s(vals)
	n := len(vals)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// AddTopography folds the stored topography surface into the model.
//
// The air layers are re-spaced to evenly cover the highest elevation,
// shifting the earth layers down to keep their thicknesses; cells above
// the ground surface become air and cells below sea level but above
// the sea floor become sea water. The covariance mask is rebuilt to
// match and the stations are dropped onto the resulting surface.
func (m *Model) AddTopography(airRes, seaRes float64) error {
	topo := m.surfaces[TopographyName]
	if topo == nil {
		return fmt.Errorf("modem: no topography surface; call ProjectSurface or SetSurface first")
	}
	nNorth, nEast, nZ := len(m.NodesNorth), len(m.NodesEast), len(m.NodesZ)
	if topo.Shape[0] != nNorth || topo.Shape[1] != nEast {
		return fmt.Errorf("modem: topography is %dx%d but the grid is %dx%d",
			topo.Shape[0], topo.Shape[1], nNorth, nEast)
	}
	m.ensureResModel()

	if m.NAirLayers > 0 {
		// Evenly sized air layers covering the highest point.
		cs := math.Ceil(maxElement(topo) / float64(m.NAirLayers))
		addZ := float64(m.NAirLayers)*cs - m.GridZ[m.NAirLayers]
		for i := m.NAirLayers + 1; i < len(m.GridZ); i++ {
			m.GridZ[i] += addZ
		}
		for i := 0; i <= m.NAirLayers; i++ {
			m.GridZ[i] = float64(i) * cs
		}
		m.NodesZ = diffs(m.GridZ)
		m.SeaLevel = m.GridZ[m.NAirLayers]
		if err := m.AssignResistivityFromSurface(TopographyName, airRes, true); err != nil {
			return err
		}
	} else {
		m.log().Warn("no air layers; adding bathymetry only")
	}

	m.CovMask = sparse.ZerosDense(nNorth, nEast, nZ)
	for i := range m.CovMask.Elements {
		m.CovMask.Elements[i] = MaskEarth
	}

	gcz := cellCenters(m.GridZ)
	for j := 0; j < nNorth; j++ {
		for i := 0; i < nEast; i++ {
			// Ground surface depth below the top of the grid.
			topoDepth := m.SeaLevel - topo.Get(j, i)
			for k, z := range gcz {
				if z <= topoDepth {
					m.CovMask.Set(MaskAir, j, i, k)
				}
				if z > m.SeaLevel && z <= topoDepth {
					m.CovMask.Set(MaskSea, j, i, k)
					m.ResModel.Set(seaRes, j, i, k)
				}
			}
		}
	}

	return m.ProjectStationsOnTopography(airRes)
}

func (m *Model) ensureResModel() {
	if m.ResModel != nil {
		return
	}
	m.ResModel = sparse.ZerosDense(len(m.NodesNorth), len(m.NodesEast), len(m.NodesZ))
	for i := range m.ResModel.Elements {
		m.ResModel.Elements[i] = 100
	}
}

func maxElement(a *sparse.DenseArray) float64 {
	max := math.Inf(-1)
	for _, v := range a.Elements {
		if v > max {
			max = v
		}
	}
	return max
}

// AssignResistivityFromSurface sets the resistivity of every cell
// above (or below) the named surface. Cells above the topography
// surface are never overwritten when assigning another surface.
func (m *Model) AssignResistivityFromSurface(name string, value float64, above bool) error {
	surf := m.surfaces[name]
	if surf == nil {
		return fmt.Errorf("modem: no surface named %q", name)
	}
	m.ensureResModel()

	gcz := cellCenters(m.GridZ)
	topo := m.surfaces[TopographyName]
	nNorth, nEast := len(m.NodesNorth), len(m.NodesEast)
	for j := 0; j < nNorth; j++ {
		for i := 0; i < nEast; i++ {
			surfDepth := m.SeaLevel - surf.Get(j, i)
			// Depth of the protected topography above which nothing is
			// assigned.
			topoDepth := m.SeaLevel
			if topo != nil {
				if name == TopographyName {
					topoDepth = 0
				} else {
					topoDepth = m.SeaLevel - topo.Get(j, i)
				}
			}
			for k, z := range gcz {
				if above {
					if z <= surfDepth && z > topoDepth {
						m.ResModel.Set(value, j, i, k)
					}
				} else if z > surfDepth {
					m.ResModel.Set(value, j, i, k)
				}
			}
		}
	}
	return nil
}

// ProjectStationsOnTopography drops each station onto the model
// surface: onto the sea floor where its cell column contains sea
// water, otherwise onto the first cell below the air.
func (m *Model) ProjectStationsOnTopography(airRes float64) error {
	if m.CovMask == nil {
		return fmt.Errorf("modem: no covariance mask; call AddTopography first")
	}
	nZ := len(m.NodesZ)
	for _, s := range m.Data.Stations {
		sxi, ok := cellIndex(m.GridEast, s.RelEast)
		if !ok {
			m.log().WithFields(logrus.Fields{"station": s.Name}).
				Warn("station outside grid; cannot project onto topography")
			continue
		}
		syi, ok := cellIndex(m.GridNorth, s.RelNorth)
		if !ok {
			m.log().WithFields(logrus.Fields{"station": s.Name}).
				Warn("station outside grid; cannot project onto topography")
			continue
		}

		szi := 0
		seaBottom := -1
		firstEarth := -1
		for k := 0; k < nZ; k++ {
			if m.CovMask.Get(syi, sxi, k) == MaskSea {
				seaBottom = k
			}
			if firstEarth < 0 && m.ResModel.Get(syi, sxi, k) < 0.95*airRes {
				firstEarth = k
			}
		}
		if seaBottom >= 0 {
			szi = seaBottom
		} else if firstEarth >= 0 && columnHasAir(m.ResModel, syi, sxi, nZ, airRes) {
			szi = firstEarth
		}
		s.Elev = m.GridZ[szi] + 1
	}
	return nil
}

func columnHasAir(res *sparse.DenseArray, j, i, nZ int, airRes float64) bool {
	for k := 0; k < nZ; k++ {
		if res.Get(j, i, k) > 0.95*airRes {
			return true
		}
	}
	return false
}

// cellIndex returns the index of the cell containing x, where grid
// holds the cell boundary nodes.
func cellIndex(grid []float64, x float64) (int, bool) {
	for i := 0; i+1 < len(grid); i++ {
		if x > grid[i] && x <= grid[i+1] {
			return i, true
		}
	}
	return 0, false
}
