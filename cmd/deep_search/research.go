package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/deep-search/internal/config"
	"github.com/jonathan/deep-search/internal/extract"
	"github.com/jonathan/deep-search/internal/llm"
	"github.com/jonathan/deep-search/internal/observability"
	"github.com/jonathan/deep-search/internal/researcher"
	"github.com/jonathan/deep-search/internal/search"
	"github.com/jonathan/deep-search/internal/session"
	"github.com/jonathan/deep-search/internal/types"
)

var researchCommand = &cobra.Command{
	Use:   "research",
	Short: "Run a multi-round research session on a topic",
	Long: `Runs the full research loop: plan search queries, discover and read web
sources, extract answers to the planned goals, feed the findings into the next
round, and synthesize everything into a final report.

Configuration can be loaded from a JSON file using --config. Command-line
arguments override config file values.`,
	RunE: runResearchCmd,
}

var (
	researchConfigPath      string
	researchTopic           string
	researchDepth           int
	researchBatchSize       int
	researchMaxResults      int
	researchTimeout         int
	researchLanguage        string
	researchAPIKey          string
	researchSearchAPIKey    string
	researchSearchCX        string
	researchIncludeAcademic bool
	researchSkipEmptyRounds bool
	researchUseBrowser      bool
	researchVerbose         bool
	researchOutput          string
)

func init() {
	// Config file flag (processed first)
	researchCommand.Flags().StringVar(&researchConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	researchCommand.Flags().StringVarP(&researchTopic, "topic", "t", "", "Research topic")
	researchCommand.Flags().IntVarP(&researchDepth, "depth", "d", 0, "Number of research rounds (1-10)")
	researchCommand.Flags().IntVarP(&researchBatchSize, "batch-size", "b", 0, "Concurrent queries per round (1-8)")
	researchCommand.Flags().IntVar(&researchMaxResults, "max-results", 0, "Search results per query (1-10)")
	researchCommand.Flags().IntVar(&researchTimeout, "timeout", 0, "Per-round timeout in seconds")
	researchCommand.Flags().StringVar(&researchLanguage, "language", "", "Result language preference (e.g. en)")
	researchCommand.Flags().BoolVar(&researchIncludeAcademic, "include-academic", false, "Prefer academic and institutional sources")
	researchCommand.Flags().BoolVar(&researchSkipEmptyRounds, "skip-empty-rounds", false, "Continue the session when an entire round fails")
	researchCommand.Flags().BoolVar(&researchUseBrowser, "use-browser", false, "Use headless browser for SPA sites (requires Chrome)")
	researchCommand.Flags().BoolVarP(&researchVerbose, "verbose", "v", false, "Print detailed debug information")
	researchCommand.Flags().StringVarP(&researchOutput, "output", "o", "", "Path to write the session archive JSON")

	// API keys can be passed as flags, or read from env vars
	researchCommand.Flags().StringVar(&researchAPIKey, "api-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")
	researchCommand.Flags().StringVar(&researchSearchAPIKey, "search-api-key", "", "Google Custom Search API key (optional, defaults to GOOGLE_SEARCH_API_KEY env var)")
	researchCommand.Flags().StringVar(&researchSearchCX, "search-cx", "", "Programmable search engine ID (optional, defaults to GOOGLE_SEARCH_CX env var)")

	rootCmd.AddCommand(researchCommand)
}

func runResearchCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if researchConfigPath != "" {
		loadedCfg, err := config.LoadConfig(researchConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := loadedCfg.Validate(); err != nil {
			return err
		}

		cfg = *loadedCfg
		if researchVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", researchConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("topic") {
		cfg.Topic = researchTopic
	}
	if cmd.Flags().Changed("depth") {
		cfg.MaxDepth = researchDepth
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.BatchSize = researchBatchSize
	}
	if cmd.Flags().Changed("max-results") {
		cfg.MaxResults = researchMaxResults
	}
	if cmd.Flags().Changed("timeout") {
		cfg.SearchTimeout = researchTimeout
	}
	if cmd.Flags().Changed("language") {
		cfg.Language = researchLanguage
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = researchAPIKey
	}
	if cmd.Flags().Changed("search-api-key") {
		cfg.SearchAPIKey = researchSearchAPIKey
	}
	if cmd.Flags().Changed("search-cx") {
		cfg.SearchCX = researchSearchCX
	}
	if cmd.Flags().Changed("include-academic") {
		cfg.IncludeAcademic = researchIncludeAcademic
	}
	if cmd.Flags().Changed("skip-empty-rounds") {
		cfg.SkipEmptyRounds = researchSkipEmptyRounds
	}
	if cmd.Flags().Changed("use-browser") {
		cfg.UseBrowser = researchUseBrowser
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = researchVerbose
	}
	if cmd.Flags().Changed("output") {
		cfg.Output = researchOutput
	}

	// Step 3: Validate required fields
	if cfg.Topic == "" {
		return fmt.Errorf("--topic is required (via flag or config)")
	}

	// Step 4: Credential handling
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}
	if cfg.SearchAPIKey == "" {
		cfg.SearchAPIKey = os.Getenv("GOOGLE_SEARCH_API_KEY")
	}
	if cfg.SearchAPIKey == "" {
		return fmt.Errorf("GOOGLE_SEARCH_API_KEY environment variable or --search-api-key flag is required")
	}
	if cfg.SearchCX == "" {
		cfg.SearchCX = os.Getenv("GOOGLE_SEARCH_CX")
	}
	if cfg.SearchCX == "" {
		return fmt.Errorf("GOOGLE_SEARCH_CX environment variable or --search-cx flag is required")
	}

	// Step 5: Build collaborators
	llmClient, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = llmClient.Close() }()

	settings := cfg.Settings()

	searchClient, err := search.NewClient(ctx, cfg.SearchAPIKey, cfg.SearchCX, cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create search client: %w", err)
	}
	searchClient.SetPreferAcademic(settings.IncludeAcademic)

	planner := researcher.New(llmClient, cfg.Verbose)
	extractor := extract.NewWebExtractor(llmClient, cfg.UseBrowser, cfg.Verbose)

	// Step 6: Run the session
	input := types.ResearchInput{Topic: cfg.Topic, Settings: settings}
	sess := session.NewSession(input, planner, planner, searchClient, extractor)
	sess.SetVerbose(cfg.Verbose)

	if err := sess.Initialize(); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	runErr := sess.Run(ctx)

	// Step 7: Report
	printer := observability.NewPrinter(os.Stdout)
	archive := sess.Archive()
	printer.PrintSessionSummary(&archive)
	if cfg.Verbose {
		for i := range archive.Rounds {
			printer.PrintRoundRecord(&archive.Rounds[i])
		}
	}
	if results, ok := sess.Results(); ok {
		printer.PrintResearchResults(results)
	}

	if cfg.Output != "" {
		if err := writeArchive(cfg.Output, &archive); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Session archive written to %s\n", cfg.Output)
	}

	if runErr != nil {
		return fmt.Errorf("research failed: %w", runErr)
	}
	return nil
}

func writeArchive(path string, archive *types.SessionArchive) error {
	data, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session archive: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session archive: %w", err)
	}
	return nil
}
