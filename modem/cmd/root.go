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

// Package cmd implements the mtmodem command-line interface for
// setting up and summarizing ModEM magnetotelluric inversions.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the release version of the toolkit.
const Version = "1.0.0"

var (
	configFile string

	// Config holds the global configuration data.
	Config *ConfigData
)

// RootCmd is the main command.
var RootCmd = &cobra.Command{
	Use:   "mtmodem",
	Short: "Prepare and summarize ModEM magnetotelluric inversions.",
	Long: `mtmodem converts magnetotelluric station data into the files the
ModEM 3D inversion code reads: data, model, covariance, and control
files. It can also fold topography into a model and summarize the
misfit of a finished inversion.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return Startup(configFile)
	},
}

// Startup reads the configuration file.
func Startup(configFile string) error {
	var err error
	Config, err = ReadConfigFile(configFile)
	return err
}

func init() {
	RootCmd.AddCommand(versionCmd, meshCmd, dataCmd, rmsCmd)

	RootCmd.PersistentFlags().StringVar(&configFile, "config", "./mtmodem.toml",
		"configuration file location")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of mtmodem",
	// The version command doesn't need a configuration file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mtmodem v%s\n", Version)
	},
}
