// Package main provides the sqltalk CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sqltalk/internal/config"
	"sqltalk/internal/conversation"
	"sqltalk/internal/db"
	"sqltalk/internal/embedding"
	"sqltalk/internal/intent"
	"sqltalk/internal/logging"
	"sqltalk/internal/sqlgen"
	"sqltalk/internal/viz"
)

var (
	// Global flags
	configPath string
	dbPath     string
	verbose    bool
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sqltalk",
	Short: "sqltalk - conversational SQL over your database",
	Long: `sqltalk answers natural-language questions against a SQLite database
and keeps the thread of the conversation: follow-up questions like
"what about the second one?" are detected and answered with the
context of earlier turns carried forward automatically.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The chat TUI owns the terminal, so it skips zap setup.
		if cmd.CalledAs() == "sqltalk" || cmd.CalledAs() == "chat" {
			return nil
		}
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

// chatCmd starts the interactive chat interface
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

// askCmd answers a single question and exits
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question non-interactively",
	Long: `Answers one question and prints the result. With --session, repeated
invocations share conversational context, so follow-ups work across
calls:

  sqltalk ask --session work "What are the top 5 selling artists?"
  sqltalk ask --session work "Tell me more about the top one"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// schemaCmd prints the database schema as seen by the SQL generator
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the database schema",
	RunE:  runSchema,
}

var askSessionID string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sqltalk.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the SQLite database (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Per-question timeout")

	askCmd.Flags().StringVar(&askSessionID, "session", "", "Session id for cross-invocation context")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles everything a command needs after wiring.
type app struct {
	cfg      *config.Config
	manager  *conversation.Manager
	detector *conversation.Detector
	executor *db.Executor
	watcher  *config.Watcher
}

// buildApp wires config, logging, the embedding engine, the detector and
// the collaborators into a session manager.
func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logging.Initialize(cfg.Logging.Dir, cfg.Logging.DebugMode || verbose, cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	engine, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		OllamaTimeout:  cfg.GetOllamaTimeout(),
		GenAIAPIKey:    cfg.Embedding.APIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
	})
	if err != nil {
		return nil, err
	}

	catalog := intent.DefaultCatalog()
	classifier := intent.NewClassifier(engine, catalog)
	detector := conversation.NewDetector(engine, classifier, catalog, conversation.DetectorConfig{
		Threshold:          cfg.Conversation.FollowupThreshold,
		CompareWindow:      cfg.Conversation.CompareWindow,
		CompareAnswerChars: cfg.Conversation.AnswerTruncationLength,
	})

	var generator conversation.Generator
	if cfg.LLM.APIKey != "" {
		generator, err = sqlgen.NewGenAIGenerator(cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return nil, err
		}
	}

	executor, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	mcfg := conversation.ManagerConfig{
		TTL:           cfg.GetSessionTTL(),
		SweepInterval: time.Minute,
		Session: conversation.SessionConfig{
			Window:      cfg.Conversation.WindowSize,
			MaxKeyFacts: cfg.Conversation.MaxKeyFacts,
			MaxRows:     cfg.Conversation.MaxResultRows,
			Detector: conversation.DetectorConfig{
				Threshold:          cfg.Conversation.FollowupThreshold,
				CompareWindow:      cfg.Conversation.CompareWindow,
				CompareAnswerChars: cfg.Conversation.AnswerTruncationLength,
			},
			Enhancer: conversation.EnhancerConfig{
				AnswerChars:  cfg.Conversation.AnswerTruncationLength,
				MaxExchanges: cfg.Conversation.WindowSize,
			},
		},
	}
	manager := conversation.NewManager(detector, mcfg, generator, executor, viz.NewSuggester())

	a := &app{cfg: cfg, manager: manager, detector: detector, executor: executor}

	// Threshold tuning without restart: watch the config file. The
	// detector is shared across sessions, so every live session sees
	// the new threshold on its next turn.
	if w, err := config.Watch(configPath, func(fresh *config.Config) {
		a.detector.SetThreshold(fresh.Conversation.FollowupThreshold)
		logging.Get(logging.CategoryBoot).Info("Follow-up threshold now %.2f",
			a.detector.Threshold())
		a.cfg = fresh
	}); err == nil {
		a.watcher = w
	}

	return a, nil
}

func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.manager.Stop()
	_ = a.executor.Close()
	logging.CloseAll()
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	question := strings.Join(args, " ")
	logger.Info("Processing question", zap.String("input", question))

	var res *conversation.Result
	if askSessionID != "" {
		// Named sessions survive across invocations via an on-disk
		// snapshot under the user's home directory.
		s := a.manager.Get(askSessionID)
		history, herr := loadSessionHistory(askSessionID)
		if herr != nil {
			logger.Warn("Could not load session history", zap.Error(herr))
		} else if len(history) > 0 {
			s.Restore(history)
		}
		res, err = s.Submit(ctx, question)
		if err == nil {
			if serr := saveSessionHistory(askSessionID, s.Snapshot()); serr != nil {
				logger.Warn("Could not persist session history", zap.Error(serr))
			}
		}
	} else {
		res, err = a.manager.NewSession().Submit(ctx, question)
	}
	if err != nil {
		return err
	}

	if res.SQL != "" {
		fmt.Printf("SQL: %s\n\n", res.SQL)
	}
	fmt.Println(res.Answer)
	for _, chart := range res.Charts {
		fmt.Printf("Suggested chart: %s (%s)\n", chart.Title, chart.Type)
	}
	if res.IsFollowup {
		logger.Info("Treated as follow-up",
			zap.Float64("confidence", res.Confidence),
			zap.String("intent", string(res.Intent)))
	}
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	schema, err := a.executor.DescribeSchema(ctx)
	if err != nil {
		return err
	}
	if schema == "" {
		fmt.Println("(empty database)")
		return nil
	}
	fmt.Println(schema)
	return nil
}
