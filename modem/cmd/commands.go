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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/spf13/cobra"

	"github.com/s89209s89567/mtpy/modem"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Write a ModEM data file from the configured station data",
	Long: `data reads the input station data, selects and interpolates the
inversion periods, applies the configured error policy and rotation,
and writes a ModEM data file to the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadData(Config)
		if err != nil {
			return err
		}
		if err := prepareData(Config, d); err != nil {
			return err
		}
		if err := d.WriteFile(filepath.Join(Config.OutputDir, "ModEM_Data.dat")); err != nil {
			return err
		}
		return d.WriteStationShapefile(filepath.Join(Config.OutputDir, "stations.shp"))
	},
}

var meshCmd = &cobra.Command{
	Use:   "mesh",
	Short: "Build a model mesh and write the ModEM inversion inputs",
	Long: `mesh builds a finite-difference grid around the configured stations,
optionally folds in topography, and writes the ModEM model, covariance,
control, and data files to the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadData(Config)
		if err != nil {
			return err
		}
		if err := prepareData(Config, d); err != nil {
			return err
		}

		m := modem.NewModel(d)
		m.MeshParams = Config.Mesh
		if err := m.MakeMesh(); err != nil {
			return err
		}
		if Config.InitialResistivity > 0 {
			m.ResModel = sparse.ZerosDense(len(m.NodesNorth), len(m.NodesEast), len(m.NodesZ))
			for i := range m.ResModel.Elements {
				m.ResModel.Elements[i] = Config.InitialResistivity
			}
		}

		if Config.Topography.File != "" {
			surf, err := loadSurface(Config)
			if err != nil {
				return err
			}
			err = m.ProjectSurface(surf, modem.TopographyName, Config.Topography.Method)
			if err != nil {
				return err
			}
			err = m.AddTopography(Config.Topography.AirResistivity,
				Config.Topography.SeaResistivity)
			if err != nil {
				return err
			}
		}

		if err := m.WriteFile(filepath.Join(Config.OutputDir, "ModEM_Model.ws")); err != nil {
			return err
		}

		cov := modem.NewCovariance([3]int{})
		cov.SmoothingEast = Config.Covariance.SmoothingEast
		cov.SmoothingNorth = Config.Covariance.SmoothingNorth
		cov.SmoothingZ = Config.Covariance.SmoothingZ
		cov.SmoothingNum = Config.Covariance.SmoothingNum
		err = cov.MaskFromModel(m, Config.Topography.AirResistivity,
			Config.Topography.SeaResistivity)
		if err != nil {
			return err
		}
		if err := cov.WriteFile(filepath.Join(Config.OutputDir, "covariance.cov")); err != nil {
			return err
		}

		if err := modem.NewControlInv().WriteFile(filepath.Join(Config.OutputDir, "control.inv")); err != nil {
			return err
		}
		if err := modem.NewControlFwd().WriteFile(filepath.Join(Config.OutputDir, "control.fwd")); err != nil {
			return err
		}

		// The mesh aligned the survey center and may have moved the
		// stations onto the topography, so rewrite the data file.
		if err := d.WriteFile(filepath.Join(Config.OutputDir, "ModEM_Data.dat")); err != nil {
			return err
		}
		return d.WriteStationShapefile(filepath.Join(Config.OutputDir, "stations.shp"))
	},
}

var rmsCmd = &cobra.Command{
	Use:   "rms",
	Short: "Summarize the misfit of an inversion from its residual file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if Config.ResidualFile == "" {
			return fmt.Errorf("no ResidualFile is configured")
		}
		res, err := modem.ReadResidualFile(Config.ResidualFile)
		if err != nil {
			return err
		}
		if err := res.CalcRMS(); err != nil {
			return err
		}
		fmt.Printf("rms = %.3f (impedance %.3f, tipper %.3f)\n",
			res.RMS, res.RMSZ, res.RMSTip)
		if err := res.WriteRMSFile(filepath.Join(Config.OutputDir, "rms_values.dat")); err != nil {
			return err
		}
		return res.WriteRMSShapefile(filepath.Join(Config.OutputDir, "rms.shp"))
	},
}

// loadData reads the input station data from the configured data file
// or station table.
func loadData(config *ConfigData) (*modem.Data, error) {
	d := config.newData()
	switch {
	case config.DataFile != "":
		if err := d.ReadFile(config.DataFile); err != nil {
			return nil, err
		}
		// The configured conventions override the ones recovered from
		// the file.
		d.ErrorType = config.ErrorType
		d.Units = config.Units
	case config.StationFile != "":
		f, err := os.Open(config.StationFile)
		if err != nil {
			return nil, fmt.Errorf("opening station file: %v", err)
		}
		defer f.Close()
		d.Stations, err = modem.ReadStationCSV(f)
		if err != nil {
			return nil, err
		}
		if len(config.Periods.PeriodList) == 0 {
			return nil, fmt.Errorf("a station table input needs an explicit " +
				"Periods.PeriodList to model")
		}
		d.InitializeEmpty(config.Periods.PeriodList)
	default:
		return nil, fmt.Errorf("no DataFile or StationFile is configured")
	}
	return d, nil
}

// prepareData derives periods, interpolates, rotates, and locates the
// stations on the survey grid.
func prepareData(config *ConfigData, d *modem.Data) error {
	if err := d.SelectPeriods(); err != nil {
		return err
	}
	if err := d.InterpolateResponses(); err != nil {
		return err
	}
	if config.RotationAngle != 0 {
		d.Rotate(config.RotationAngle)
	}
	return d.ComputeRelativeLocations()
}

// loadSurface reads the configured topography file; NetCDF when the
// name ends in .nc, otherwise an ESRI ASCII grid.
func loadSurface(config *ConfigData) (*modem.Surface, error) {
	if strings.HasSuffix(config.Topography.File, ".nc") {
		f, err := os.Open(config.Topography.File)
		if err != nil {
			return nil, fmt.Errorf("opening topography file: %v", err)
		}
		defer f.Close()
		return modem.ReadSurfaceNetCDF(f, config.Topography.ElevVar)
	}
	return modem.ReadSurfaceASCIIFile(config.Topography.File)
}
