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

// Package modem prepares magnetotelluric transfer-function data for the
// ModEM 3D inversion code and reads the files ModEM produces.
//
// The package covers the full round trip of a ModEM project: projecting
// station locations from geographic to grid coordinates, selecting and
// interpolating inversion periods, writing and reading ModEM data files,
// building a finite-difference mesh around the station array, folding
// surface topography and bathymetry into the mesh, and summarizing the
// misfit of an inversion from a residual file.
package modem
