// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for scripting around the CLI.
const (
	exitOK       = 0
	exitConfig   = 1
	exitGateway  = 2
	exitInternal = 3
)

var (
	rootCmd = &cobra.Command{
		Use:   "driftlab",
		Short: "A CLI for running agent-misevolution experiments",
		Long: `driftlab runs closed-loop experiments in which a learning
customer-service agent is scored on short-term reward, delayed outcome,
and violation penalties, with an optional in-line safety reviewer.`,
	}

	configPath  string
	csvOut      string
	useStubs    bool
	strictFlag  bool
	verboseFlag bool

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run one experiment to completion from a YAML config",
		Long: `Loads an experiment config from YAML, runs it headlessly against
the configured model gateway (or deterministic stubs with --stub), and
prints a summary. Exit codes: 0 ok, 1 config error, 2 gateway
unavailable, 3 internal error.`,
		Run: runExperimentCommand,
	}
)

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the experiment YAML config")
	runCmd.Flags().StringVar(&csvOut, "csv", "", "write the experiment export CSV to this path")
	runCmd.Flags().BoolVar(&useStubs, "stub", false, "use the deterministic in-process gateway stubs")
	runCmd.Flags().BoolVar(&strictFlag, "strict", false, "run the safety sentry in strict mode")
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "debug logging")
	_ = runCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitConfig)
	}
}
