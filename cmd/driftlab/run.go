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
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/AleutianAI/AleutianDrift/pkg/logging"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/datatypes"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/defense"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/experiment"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/memory"
	"github.com/AleutianAI/AleutianDrift/services/llm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// runConfig is the YAML file the run command consumes.
type runConfig struct {
	Name       string                     `yaml:"name"`
	Experiment datatypes.ExperimentConfig `yaml:"experiment"`
}

func runExperimentCommand(cmd *cobra.Command, args []string) {
	level := logging.LevelInfo
	if verboseFlag {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{Level: level, Service: "cli"})
	defer logger.Close()
	// Route component slog output through the CLI logger.
	slog.SetDefault(logger.Slog())

	data, err := os.ReadFile(configPath)
	if err != nil {
		logger.Error("cannot read config file", "path", configPath, "error", err)
		os.Exit(exitConfig)
	}
	var cfg runConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("cannot parse config file", "path", configPath, "error", err)
		os.Exit(exitConfig)
	}
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(configPath, ".yaml")
	}

	var agent llm.ChatModel
	var embedder llm.Embedder
	var judge llm.ChatModel

	if useStubs {
		agent = &llm.StubChatModel{}
		embedder = &llm.StubEmbedder{}
		logger.Info("running against deterministic stubs")
	} else {
		agentCfg, err := llm.ConfigFromEnv(llm.RoleAgent)
		if err != nil {
			logger.Error("agent gateway not configured", "error", err)
			os.Exit(exitGateway)
		}
		client := llm.NewOpenAIClient(llm.RoleAgent, agentCfg)
		agent = client
		embedder = memory.NewEmbeddingCache(client, 4096)

		if judgeCfg, jerr := llm.ConfigFromEnv(llm.RoleJudge); jerr == nil {
			judge = llm.NewOpenAIClient(llm.RoleJudge, judgeCfg)
		} else {
			logger.Warn("judge gateway not configured, defense degrades to rule-only")
		}
	}

	sentry := defense.NewSentry(defense.NewDetector(defense.WithJudge(judge)),
		strictFlag || cfg.Experiment.StrictDefense)
	sup := experiment.NewSupervisor(experiment.Deps{
		Agent:    agent,
		Embedder: embedder,
		Sentry:   sentry,
	})
	defer sup.Close()

	snap, err := sup.Start(cfg.Name, cfg.Experiment)
	if err != nil {
		logger.Error("experiment rejected", "error", err)
		os.Exit(exitConfig)
	}
	logger.Info("experiment started", "experiment", snap.UUID,
		"episodes", snap.TotalEpisodes)

	if err := sup.Wait(snap.UUID); err != nil {
		logger.Error("experiment wait failed", "error", err)
		os.Exit(exitInternal)
	}

	final, err := sup.Get(snap.UUID)
	if err != nil {
		logger.Error("experiment vanished", "error", err)
		os.Exit(exitInternal)
	}

	printSummary(final, sentry)

	if csvOut != "" {
		data, err := sup.ExportCSV(final.UUID)
		if err != nil {
			logger.Error("export failed", "error", err)
			os.Exit(exitInternal)
		}
		if err := os.WriteFile(csvOut, data, 0644); err != nil {
			logger.Error("cannot write export", "path", csvOut, "error", err)
			os.Exit(exitInternal)
		}
		logger.Info("export written", "path", csvOut)
	}

	switch final.Status {
	case datatypes.StatusCompleted:
		os.Exit(exitOK)
	case datatypes.StatusFailed:
		if strings.Contains(final.Error, "model unavailable") ||
			strings.Contains(final.Error, "model timeout") {
			os.Exit(exitGateway)
		}
		os.Exit(exitInternal)
	default:
		os.Exit(exitInternal)
	}
}

func printSummary(exp datatypes.Experiment, sentry *defense.Sentry) {
	stats := exp.Statistics
	fmt.Printf("experiment %s (%s)\n", exp.UUID, exp.Status)
	fmt.Printf("  episodes:       %d/%d\n", exp.CurrentEpisode, exp.TotalEpisodes)
	fmt.Printf("  successes:      %d\n", stats.SuccessCount)
	fmt.Printf("  violations:     %d (%.1f%%), %d blocked\n",
		stats.ViolationCount, stats.ViolationRate()*100, stats.BlockedViolations)
	fmt.Printf("  total reward:   %.2f (avg %.2f)\n", stats.TotalReward, stats.AverageReward)
	fmt.Printf("  gateway fallbacks: %d\n", stats.GatewayFallbacks)
	for _, u := range stats.StrategyDistribution {
		fmt.Printf("  strategy %-10s %4d (%.1f%%)\n", u.Strategy, u.Count, u.Percentage*100)
	}
	if exp.Config.EnableDefense {
		d := sentry.Statistics()
		fmt.Printf("  defense: %d reviews, %d blocked, %d warned, %d rewritten\n",
			d.TotalReviews, d.Blocked, d.Warned, d.Rewritten)
	}
	for _, w := range stats.Windows {
		fmt.Printf("  window %3d-%3d violation rate %.2f\n",
			w.StartEpisode, w.EndEpisode, w.ViolationRate)
	}
}
