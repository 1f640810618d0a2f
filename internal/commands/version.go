/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/cvet/fonline-sub001/internal/version"
)

const (
	//  If set, the value of this variable will be written to the log file as one of the first log messages.
	MOCKDAP_LOGGING_CONTEXT = "MOCKDAP_LOGGING_CONTEXT"
)

const shortFlagName = "short"

func NewVersionCommand(log logr.Logger) (*cobra.Command, error) {
	var short bool

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Prints version information",
		Long: `Prints version information of the debug adapter as a JSON object.
With --short only the product version is printed.`,
		RunE: printVersion(log, &short),
		Args: cobra.NoArgs,
	}
	versionCmd.Flags().BoolVar(&short, shortFlagName, false, "Print only the product version")

	return versionCmd, nil
}

func printVersion(log logr.Logger, short *bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if *short {
			_, err := cmd.OutOrStdout().Write(WithNewline([]byte(version.Version().Version)))
			return err
		}

		versionStr, err := versionString()
		if err != nil {
			log.WithName("version").Error(err, "Could not serialize version information")
			return err
		}

		_, err = cmd.OutOrStdout().Write(WithNewline([]byte(versionStr)))
		return err
	}
}

func LogVersion(log logr.Logger, programStartMsg string) func(_ *cobra.Command, _ []string) {
	return func(_ *cobra.Command, _ []string) {
		versionString, err := versionString()
		if err != nil {
			versionString = fmt.Sprintf("unknown: %v", err)
		}

		launchPath, pathErr := os.Executable()
		if pathErr != nil {
			launchPath = os.Args[0]
		}

		log.V(1).Info(programStartMsg,
			"PID", os.Getpid(),
			"Exe", launchPath,
			"Args", os.Args[1:],
			"Version", versionString,
			"GOMAXPROCS", runtime.GOMAXPROCS(0),
		)

		logContext, found := os.LookupEnv(MOCKDAP_LOGGING_CONTEXT)
		if found && len(logContext) > 0 {
			log.V(1).Info(logContext)
		}
	}
}

func versionString() (string, error) {
	serialized, err := json.Marshal(version.Version())
	if err != nil {
		return "", fmt.Errorf("could not serialize version information: %w", err)
	}
	return string(serialized), nil
}
