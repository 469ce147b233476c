package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/skillrt/internal/execmgr"
	"github.com/haasonsaas/skillrt/internal/logging"
	"github.com/haasonsaas/skillrt/internal/sandbox"
	"github.com/haasonsaas/skillrt/internal/skills"
	"github.com/haasonsaas/skillrt/internal/stats"
	"github.com/haasonsaas/skillrt/internal/tooldesc"
	"github.com/haasonsaas/skillrt/internal/usage"
	"github.com/haasonsaas/skillrt/pkg/models"
)

func buildLogger(debug bool) *slog.Logger {
	level := "info"
	if debug {
		level = "debug"
	}
	return logging.New(logging.Config{Level: level, Format: "text"})
}

func buildIndex(ctx context.Context, log *slog.Logger, roots []string) (*skills.SkillIndex, error) {
	idx := skills.NewSkillIndex(log)
	sources := make([]skills.DiscoverySource, len(roots))
	for i, r := range roots {
		sources[i] = skills.DiscoverySource{Root: r, Priority: i}
	}
	if err := idx.DiscoverAll(ctx, sources); err != nil {
		return nil, err
	}
	return idx, nil
}

// buildIndexCmd scans one or more skill roots and prints index statistics.
func buildIndexCmd() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "index [roots...]",
		Short: "Scan skill roots and print index statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := buildLogger(debug)
			idx, err := buildIndex(cmd.Context(), log, args)
			if err != nil {
				return err
			}
			stats := idx.Stats()
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

// buildServeCheckCmd is a dry run: index the given roots and print the
// rendered tool catalog at the requested phase (or the adaptive default).
func buildServeCheckCmd() *cobra.Command {
	var (
		debug bool
		phase string
	)
	cmd := &cobra.Command{
		Use:   "serve-check [roots...]",
		Short: "Index skill roots and print the rendered tool catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := buildLogger(debug)
			idx, err := buildIndex(cmd.Context(), log, args)
			if err != nil {
				return err
			}
			loader := skills.NewSkillsLoader(idx)
			gen := tooldesc.New(loader)
			fmt.Println(gen.GetAllToolsDescription(tooldesc.Phase(phase)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&phase, "phase", "", "rendering phase: metadata, brief, or full (default: adaptive)")
	return cmd
}

// buildExecCmd runs one skill once, outside any conversation loop, for local
// debugging of a skill package.
func buildExecCmd() *cobra.Command {
	var (
		debug      bool
		root       string
		skillName  string
		paramsJSON string
		timeoutMs  int
	)
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Execute one skill once and print its response",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := buildLogger(debug)
			idx, err := buildIndex(cmd.Context(), log, []string{root})
			if err != nil {
				return err
			}
			loader := skills.NewSkillsLoader(idx)
			direct := sandbox.NewDirectBackend(log)
			docker := sandbox.NewDockerBackend(log)
			tracker := usage.NewTracker()
			collector := stats.New()

			mgr := execmgr.New(log, loader, direct, docker, tracker, collector, nil)

			params := json.RawMessage(strings.TrimSpace(paramsJSON))
			if len(params) == 0 {
				params = json.RawMessage("{}")
			}

			resp, err := mgr.Execute(cmd.Context(), models.ExecutionRequest{
				SkillName:  skillName,
				Parameters: params,
				TimeoutMs:  timeoutMs,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.Flags().StringVar(&root, "root", "", "skills root containing the skill directory")
	cmd.Flags().StringVar(&skillName, "skill", "", "skill name to execute")
	cmd.Flags().StringVar(&paramsJSON, "params", "{}", "JSON parameters object")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", 0, "lower the skill's declared timeout (a larger value has no effect)")
	cmd.MarkFlagRequired("root")
	cmd.MarkFlagRequired("skill")
	return cmd
}
