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

package cmd

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/s89209s89567/mtpy/modem"
)

// ConfigData holds a ModEM project configuration.
type ConfigData struct {
	// DataFile is the path to an existing ModEM data file to start
	// from. The path can include environment variables.
	DataFile string

	// StationFile is the path to a CSV station table with station,
	// lat, lon, and optionally elev columns, used instead of DataFile
	// when setting up a forward-modeling project from scratch. The
	// path can include environment variables.
	StationFile string

	// ResidualFile is the path to a ModEM residual file for misfit
	// summaries. The path can include environment variables.
	ResidualFile string

	// OutputDir is the directory output files are written to. It can
	// include environment variables.
	OutputDir string

	// EPSG selects the projected coordinate system for station
	// locations; zero means built-in UTM on WGS-84.
	EPSG int

	// RotationAngle rotates the data and station locations, degrees
	// clockwise from north.
	RotationAngle float64

	// Periods configures the selection of inversion periods.
	Periods modem.PeriodConfig

	// ErrorType is the impedance error policy: floor, value, egbert,
	// or floor_egbert. ErrorFloor, ErrorValue, and ErrorEgbert are the
	// corresponding percentages; ErrorTipper is the absolute tipper
	// error.
	ErrorType   string
	ErrorFloor  float64
	ErrorValue  float64
	ErrorEgbert float64
	ErrorTipper float64

	// Units is the impedance unit convention of the output data file,
	// "[mV/km]/[nT]" or "ohm".
	Units string

	// InvMode selects the data blocks written, and Formatting the
	// column layout preset ("1" or "2").
	InvMode    string
	Formatting string

	// Mesh provides the parameters of the finite-difference grid.
	Mesh modem.MeshParams

	// InitialResistivity is the starting halfspace resistivity, ohm-m.
	InitialResistivity float64

	// Topography configures the optional elevation surface folded into
	// the mesh.
	Topography struct {
		// File is the path to an ESRI ASCII grid, or to a NetCDF file
		// when it ends in .nc. It can include environment variables.
		File string

		// ElevVar names the NetCDF elevation variable; empty picks the
		// first variable with dimensions [lat, lon].
		ElevVar string

		// Method is the surface interpolation method, "nearest" or
		// "linear".
		Method string

		AirResistivity float64
		SeaResistivity float64
	}

	// Covariance configures the model covariance file.
	Covariance struct {
		SmoothingEast  float64
		SmoothingNorth float64
		SmoothingZ     float64
		SmoothingNum   int
	}
}

// ReadConfigFile reads and parses a TOML configuration file.
func ReadConfigFile(filename string) (*ConfigData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("the configuration file you have specified, %v, does not "+
			"appear to exist. Please check the file name and location and "+
			"try again", filename)
	}
	defer file.Close()
	bytes, err := ioutil.ReadAll(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("problem reading configuration file: %v", err)
	}

	config := defaultConfig()
	if _, err := toml.Decode(string(bytes), config); err != nil {
		return nil, fmt.Errorf(
			"there has been an error parsing the configuration file: %v", err)
	}

	config.DataFile = os.ExpandEnv(config.DataFile)
	config.StationFile = os.ExpandEnv(config.StationFile)
	config.ResidualFile = os.ExpandEnv(config.ResidualFile)
	config.OutputDir = os.ExpandEnv(config.OutputDir)
	config.Topography.File = os.ExpandEnv(config.Topography.File)
	if config.OutputDir == "" {
		config.OutputDir = "."
	}
	return config, nil
}

func defaultConfig() *ConfigData {
	c := &ConfigData{
		ErrorType:          modem.ErrorEgbert,
		ErrorFloor:         5,
		ErrorValue:         5,
		ErrorEgbert:        3,
		ErrorTipper:        0.05,
		Units:              modem.UnitsMillivolt,
		InvMode:            "1",
		Formatting:         "1",
		Mesh:               modem.DefaultMeshParams(),
		InitialResistivity: 100,
	}
	c.Topography.Method = modem.InterpNearest
	c.Topography.AirResistivity = modem.DefaultAirResistivity
	c.Topography.SeaResistivity = modem.DefaultSeaResistivity
	c.Covariance.SmoothingEast = 0.3
	c.Covariance.SmoothingNorth = 0.3
	c.Covariance.SmoothingZ = 0.3
	c.Covariance.SmoothingNum = 1
	return c
}

// newData builds a Data with the configured conventions.
func (c *ConfigData) newData() *modem.Data {
	d := modem.NewData()
	d.ErrorType = c.ErrorType
	d.ErrorFloor = c.ErrorFloor
	d.ErrorValue = c.ErrorValue
	d.ErrorEgbert = c.ErrorEgbert
	d.ErrorTipper = c.ErrorTipper
	d.Units = c.Units
	d.InvMode = c.InvMode
	d.Formatting = c.Formatting
	d.EPSG = c.EPSG
	d.PeriodConfig = c.Periods
	return d
}
