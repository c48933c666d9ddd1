package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bookchat/internal/catalog"
	"bookchat/internal/chat"
	"bookchat/internal/config"
	"bookchat/internal/domain"
	"bookchat/internal/gateway"
	"bookchat/internal/identity"
	"bookchat/internal/ingest"
	"bookchat/internal/logging"
	"bookchat/internal/tui"
)

var cfgPath string

type app struct {
	cfg     *config.AppConfig
	log     *zap.Logger
	userID  string
	gw      *gateway.Client
	lib     *catalog.Library
	orch    *ingest.Orchestrator
	session *chat.Session
}

// buildApp wires the components the way cmd/rag assembles its service:
// config first, then the shared pieces, injected explicitly.
func buildApp() (*app, error) {
	_ = godotenv.Load()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if v := os.Getenv("BOOKCHAT_BASE_URL"); v != "" {
		cfg.Services.BaseURL = v
	}

	log := logging.New(cfg.Log.File, cfg.Log.Debug)
	userID := identity.NewProvider(cfg.IdentityPath).GetOrCreate()

	gw := gateway.NewClient(gateway.Config{
		ProcessingURL: cfg.Processing(),
		IndexingURL:   cfg.Indexing(),
		AgentURL:      cfg.Agent(),
		Timeout:       time.Duration(cfg.Services.TimeoutSecs) * time.Second,
		UploadTimeout: time.Duration(cfg.Services.UploadTimeoutSecs) * time.Second,
	}, log)

	return &app{
		cfg:     cfg,
		log:     log,
		userID:  userID,
		gw:      gw,
		lib:     catalog.NewLibrary(gw, log),
		orch:    ingest.NewOrchestrator(gw, log),
		session: chat.NewSession(gw, userID, log),
	}, nil
}

var rootCmd = &cobra.Command{
	Use:   "bookchat",
	Short: "Chat with your documents from the terminal",
	Long: `bookchat uploads documents to a processing backend, indexes them for
retrieval and lets you converse with an assistant grounded in their
content. Run without arguments to start the interactive interface.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.log.Sync()
		m := tui.New(a.lib, a.orch, a.session, a.userID, a.log)
		_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Upload and index a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.log.Sync()
		book, err := a.orch.Ingest(cmd.Context(), args[0], a.userID)
		if err != nil {
			var pi *domain.PartialIngestionError
			if errors.As(err, &pi) {
				return fmt.Errorf("%q was processed but indexing failed (%v); run `bookchat reindex %s` to retry", pi.BookName, pi.Err, pi.BookName)
			}
			return err
		}
		fmt.Printf("Ingested %q\n", book)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <book>",
	Short: "Delete a book from both backend services",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.log.Sync()
		if err := a.orch.Delete(cmd.Context(), args[0], a.userID); err != nil {
			var pd *domain.PartialDeletionError
			if errors.As(err, &pd) {
				return fmt.Errorf("%q is gone from the library but its processed data remains (%v); delete again to retry", pd.BookName, pd.Err)
			}
			return err
		}
		fmt.Printf("Deleted %q\n", args[0])
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex [book]",
	Short: "Re-run indexing for one book, or bulk scan-and-index with no argument",
	Long: `With a book name, retries the indexing half of ingestion (the recovery
path when ingestion reported a partially ingested book). Without one,
asks the indexing service to scan its data directory and index whatever
is new: an administrative bulk operation, not part of the upload flow.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.log.Sync()
		force, _ := cmd.Flags().GetBool("force")
		if len(args) == 1 {
			if err := a.orch.Reindex(cmd.Context(), args[0], a.userID, force); err != nil {
				return err
			}
			fmt.Printf("Indexed %q\n", args[0])
			return nil
		}
		res, err := a.gw.ScanAndIndex(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(res.Message)
		for _, b := range res.Books {
			fmt.Println("  " + b)
		}
		return nil
	},
}

var collectionsCmd = &cobra.Command{
	Use:   "collections [name]",
	Short: "List the indexed collections, or show one in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.log.Sync()
		if len(args) == 1 {
			c, err := a.gw.CollectionInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s\n  chunks:      %d\n  vector size: %d\n  distance:    %s\n", c.Name, c.PointsCount, c.VectorSize, c.Distance)
			return nil
		}
		cols, err := a.lib.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			fmt.Println("No collections.")
			return nil
		}
		for _, c := range cols {
			fmt.Printf("%-30s %6d chunks  %s\n", c.Name, c.PointsCount, c.Distance)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <collection> <query>",
	Short: "Run a semantic search against one collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.log.Sync()
		limit, _ := cmd.Flags().GetInt("limit")
		if limit == 0 {
			limit = a.cfg.Chat.SearchLimit
		}
		res, err := a.gw.Search(cmd.Context(), domain.SearchRequest{
			CollectionName: args[0],
			Query:          args[1],
			Limit:          limit,
		})
		if err != nil {
			return err
		}
		for i, hit := range res.Results {
			fmt.Printf("%2d. score=%.3f\n", i+1, hit.Score)
			if text, ok := hit.Payload["text"].(string); ok {
				fmt.Println("    " + text)
			}
		}
		fmt.Printf("%d result(s)\n", res.Total)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/bookchat/config.yaml if not provided)")
	reindexCmd.Flags().Bool("force", false, "Rebuild the collection from scratch")
	searchCmd.Flags().Int("limit", 0, "Maximum number of results")
	rootCmd.AddCommand(ingestCmd, deleteCmd, reindexCmd, collectionsCmd, searchCmd)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
