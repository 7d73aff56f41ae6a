package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/db"
	"github.com/jonathan/resume-optimizer/internal/gatekeeper"
	"github.com/jonathan/resume-optimizer/internal/llm"
	"github.com/jonathan/resume-optimizer/internal/observability"
	"github.com/jonathan/resume-optimizer/internal/pipeline"
	"github.com/jonathan/resume-optimizer/internal/stages"
	"github.com/jonathan/resume-optimizer/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the optimization pipeline end-to-end for one resume",
	Long: `Runs the staged pipeline: research -> write -> critique -> design, with a
gatekeeper audit at every stage boundary and scorecard-driven refinement
rounds through write and critique.

Configuration can be loaded from a JSON file using --config. Command-line
arguments override config file values. With --manual the run pauses after
every stage and waits for Enter before continuing.`,
	RunE: runPipelineCmd,
}

var (
	runConfigPath      string
	runDocumentRef     string
	runRole            string
	runLocation        string
	runMode            string
	runManual          bool
	runMaxRounds       int
	runPassThreshold   int
	runMaxForcedPasses int
	runAPIKey          string
	runDatabaseURL     string
	runVerbose         bool
)

func init() {
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVarP(&runDocumentRef, "document", "d", "", "Reference to the base resume document")
	runCommand.Flags().StringVarP(&runRole, "role", "r", "", "Target role to optimize for")
	runCommand.Flags().StringVar(&runLocation, "location", "", "Target location")
	runCommand.Flags().StringVar(&runMode, "mode", "", "Target work mode (remote, hybrid, onsite)")
	runCommand.Flags().BoolVar(&runManual, "manual", false, "Pause at every stage boundary and wait for Enter")
	runCommand.Flags().IntVar(&runMaxRounds, "max-rounds", 0, "Refinement round budget")
	runCommand.Flags().IntVar(&runPassThreshold, "pass-threshold", 0, "Overall score that exits the refinement loop")
	runCommand.Flags().IntVar(&runMaxForcedPasses, "max-forced-passes", 0, "Forced pass budget (0 = uncapped)")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed progress information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	runCommand.Flags().StringVar(&runAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for run persistence; without it the run is in-memory only
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	var cfg config.Config
	if runConfigPath != "" {
		loadedCfg, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return err
		}
		cfg = *loadedCfg
		if runVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", runConfigPath)
		}
	}

	// CLI flags override config file values when explicitly set.
	if cmd.Flags().Changed("document") {
		cfg.DocumentRef = runDocumentRef
	}
	if cmd.Flags().Changed("role") {
		cfg.Role = runRole
	}
	if cmd.Flags().Changed("location") {
		cfg.Location = runLocation
	}
	if cmd.Flags().Changed("mode") {
		cfg.Mode = runMode
	}
	if cmd.Flags().Changed("manual") {
		cfg.ManualMode = runManual
	}
	if cmd.Flags().Changed("max-rounds") {
		cfg.MaxRounds = runMaxRounds
	}
	if cmd.Flags().Changed("pass-threshold") {
		cfg.PassThreshold = runPassThreshold
	}
	if cmd.Flags().Changed("max-forced-passes") {
		cfg.MaxForcedPasses = runMaxForcedPasses
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = runAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if cfg.DocumentRef == "" {
		return fmt.Errorf("--document is required (or 'document_ref' in config)")
	}
	if cfg.Role == "" {
		return fmt.Errorf("--role is required (or 'role' in config)")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := llm.NewClient(ctx, nil, cfg.APIKey)
	if err != nil {
		return err
	}
	defer client.Close()

	var store pipeline.Store = pipeline.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			return err
		}
		store = database
	}

	manager := pipeline.NewManager(store, stages.NewExecutor(client), gatekeeper.New(client), pipeline.Options{
		MaxRounds:       cfg.MaxRounds,
		PassThreshold:   cfg.PassThreshold,
		MaxForcedPasses: cfg.MaxForcedPasses,
	})

	target := types.TargetParams{Role: cfg.Role, Location: cfg.Location, Mode: cfg.Mode}
	runID, err := manager.Start(ctx, pipeline.StartOptions{
		DocumentRef: cfg.DocumentRef,
		Target:      target,
		ManualMode:  cfg.ManualMode,
	})
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(os.Stdout)
	if runVerbose || cfg.Verbose {
		printer.PrintRunHeader(cfg.DocumentRef, target, cfg.ManualMode)
	}
	fmt.Printf("Run started: %s\n", runID)

	events, err := manager.Subscribe(ctx, runID)
	if err != nil {
		return err
	}

	stdin := bufio.NewReader(os.Stdin)
	for event := range events {
		if runVerbose || cfg.Verbose {
			printer.PrintEvent(event)
		}

		// The subscription stays open across pauses; the stream only closes
		// at a terminal state.
		if event.Type == types.EventRunPaused {
			if event.Pause != nil {
				fmt.Printf("Paused after %s. Press Enter to continue with %s...\n",
					event.Pause.CompletedStage, event.Pause.NextStage)
			}
			if _, err := stdin.ReadString('\n'); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			if err := manager.Continue(ctx, runID); err != nil {
				return err
			}
		}
	}

	state, err := manager.Status(ctx, runID)
	if err != nil {
		return err
	}
	printer.PrintRunResult(state)

	if state.Status != types.RunStatusComplete {
		return fmt.Errorf("run finished with status %s", state.Status)
	}
	return nil
}
