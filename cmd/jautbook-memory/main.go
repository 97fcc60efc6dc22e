// Package main is the operator CLI for the JautBook agent memory system.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lanefiedler731-gif/JautBook/internal/config"
	"github.com/lanefiedler731-gif/JautBook/internal/index/sqlite"
	"github.com/lanefiedler731-gif/JautBook/internal/memory"
	"github.com/lanefiedler731-gif/JautBook/internal/workspace"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jautbook-memory",
		Short:         "Inspect and write JautBook agent memory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(
		versionCmd(),
		logCmd(),
		rememberCmd(),
		coreCmd(),
		entityCmd(),
		recallCmd(),
		contextCmd(),
		statsCmd(),
		eventCmd(),
		referenceCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("jautbook-memory %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log <agent> <entry>",
		Short: "Append an entry to today's daily log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeFn, err := buildSystem(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			section, _ := cmd.Flags().GetString("section")
			return sys.WriteLog(args[0], args[1], section)
		},
	}
	cmd.Flags().String("section", "Activity", "Section label for the entry")
	return cmd
}

func rememberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remember <agent> <fact>",
		Short: "Index a fact for later recall",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeFn, err := buildSystem(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			kind, _ := cmd.Flags().GetString("kind")
			entities, _ := cmd.Flags().GetStringSlice("entity")
			confidence, _ := cmd.Flags().GetFloat64("confidence")
			id, err := sys.RetainFact(cmd.Context(), args[0], args[1], memory.Kind(kind), entities, confidence)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	cmd.Flags().String("kind", string(memory.KindObservation), "Fact kind")
	cmd.Flags().StringSlice("entity", nil, "Entity tag (repeatable)")
	cmd.Flags().Float64("confidence", 1.0, "Confidence in [0,1]")
	return cmd
}

func coreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "core <agent> [section] [content]",
		Short: "Read core memory, or append a bullet to a section",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeFn, err := buildSystem(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if len(args) < 3 {
				doc, err := sys.ReadCore(args[0])
				if err != nil {
					return err
				}
				fmt.Print(doc)
				return nil
			}
			return sys.UpsertCoreSection(cmd.Context(), args[0], args[1], args[2])
		},
	}
}

func entityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entity <agent> <name> [observation]...",
		Short: "Read an entity document, or append observations",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeFn, err := buildSystem(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if len(args) == 2 {
				doc, err := sys.ReadEntity(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Print(doc)
				return nil
			}
			return sys.UpsertEntity(cmd.Context(), args[0], args[1], args[2:])
		},
	}
}

func recallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall <agent> <query>",
		Short: "Search an agent's facts by relevance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeFn, err := buildSystem(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			limit, _ := cmd.Flags().GetInt("limit")
			days, _ := cmd.Flags().GetInt("days")
			kind, _ := cmd.Flags().GetString("kind")
			facts, err := sys.Recall(cmd.Context(), args[0], args[1], memory.SearchOptions{
				Limit:     limit,
				SinceDays: days,
				Kind:      memory.Kind(kind),
			})
			if err != nil {
				return err
			}
			printFacts(facts)
			return nil
		},
	}
	cmd.Flags().Int("limit", 5, "Maximum number of results")
	cmd.Flags().Int("days", 0, "Only facts from the last N days")
	cmd.Flags().String("kind", "", "Only facts of this kind")
	return cmd
}

func contextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context <agent>",
		Short: "Assemble the context blob for one decision turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeFn, err := buildSystem(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			topic, _ := cmd.Flags().GetString("topic")
			participants, _ := cmd.Flags().GetStringSlice("participant")
			budget, _ := cmd.Flags().GetInt("budget")
			blob, err := sys.AssembleContext(cmd.Context(), memory.AssembleRequest{
				Agent:        args[0],
				Topic:        topic,
				Participants: participants,
				Budget:       budget,
			})
			if err != nil {
				return err
			}
			fmt.Println(blob)
			return nil
		},
	}
	cmd.Flags().String("topic", "", "Current conversation topic")
	cmd.Flags().StringSlice("participant", nil, "Participating agent (repeatable)")
	cmd.Flags().Int("budget", 0, "Approximate token budget (advisory)")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <agent>",
		Short: "Print memory statistics for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeFn, err := buildSystem(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			stats, err := sys.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Agent:            %s\n", stats.Agent)
			fmt.Printf("Indexed facts:    %d\n", stats.TotalFacts)
			fmt.Printf("Facts this week:  %d\n", stats.FactsThisWeek)
			fmt.Printf("Daily logs:       %d\n", stats.DailyLogs)
			fmt.Printf("Entity documents: %d\n", stats.Entities)
			fmt.Printf("Core memory:      %d bytes\n", stats.CoreMemoryBytes)
			if len(stats.FactsByKind) > 0 {
				fmt.Println("By kind:")
				for kind, n := range stats.FactsByKind {
					fmt.Printf("  %-12s %d\n", kind, n)
				}
			}
			return nil
		},
	}
}

func eventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event <text>",
		Short: "Log a platform-wide event to shared memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shared, err := buildShared(cmd)
			if err != nil {
				return err
			}
			significance, _ := cmd.Flags().GetString("significance")
			return shared.LogEvent(args[0], significance)
		},
	}
	cmd.Flags().String("significance", "normal", "Event significance tag")
	return cmd
}

func referenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reference <label> <context>",
		Short: "Add a shared reference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			shared, err := buildShared(cmd)
			if err != nil {
				return err
			}
			return shared.AddReference(args[0], args[1])
		},
	}
}

func printFacts(facts []memory.Fact) {
	if len(facts) == 0 {
		fmt.Println("(no memories)")
		return
	}
	for _, f := range facts {
		tags := ""
		if len(f.Entities) > 0 {
			tags = " [" + strings.Join(f.Entities, ", ") + "]"
		}
		fmt.Printf("- [%s] %s (%s)%s\n", f.Kind, f.Content, f.Timestamp.Format("2006-01-02"), tags)
	}
}

// buildSystem loads configuration and wires the stores and index together.
// The returned func closes the index handle.
func buildSystem(cmd *cobra.Command) (*memory.System, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	ws := workspace.New(cfg.Workspace.Root)
	ws.IndexPath = cfg.Index.Path

	idx, err := sqlite.Open(ws.IndexFile(), sqlite.Options{
		Logger:      logger,
		BusyTimeout: cfg.Index.BusyTimeout,
		DisableWAL:  !cfg.Index.WALEnabled(),
	})
	if err != nil {
		return nil, nil, err
	}

	sys := memory.NewSystem(ws, idx, logger, memory.AssemblerConfig{
		RecentDays:       cfg.Memory.RecentLogDays,
		TopicLimit:       cfg.Memory.RecallLimit,
		ParticipantLimit: cfg.Memory.ParticipantLimit,
		ProfileMaxChars:  cfg.Memory.ProfileMaxChars,
		CharsPerToken:    cfg.Memory.CharsPerToken,
	})
	return sys, func() { _ = idx.Close() }, nil
}

// buildShared loads configuration and opens the shared memory root.
func buildShared(cmd *cobra.Command) (*memory.SharedMemory, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return memory.NewSharedMemory(cfg.Workspace.SharedRoot)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = resolveConfigPath()
	}
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/jautbook/memory.yaml, then ./memory.yaml.
// Returns "" when no file is found; defaults apply in that case.
func resolveConfigPath() string {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "jautbook", "memory.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "jautbook", "memory.yaml"))
	}

	candidates = append(candidates, "memory.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
