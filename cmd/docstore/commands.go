package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursepilot/go-services/internal/config"
	"github.com/coursepilot/go-services/internal/document"
	"github.com/coursepilot/go-services/internal/document/service"
	"github.com/coursepilot/go-services/internal/document/store"
	"github.com/coursepilot/go-services/internal/extract"
	"github.com/coursepilot/go-services/pkg/logger"
)

// NewRootCommand builds the docstore CLI. Store settings come from the same
// environment as the server; --engine and --path override them.
func NewRootCommand() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "docstore",
		Short: "Operate on the coursepilot document store directly",
		Long: `docstore reads and writes the content-addressed document store used by
the advisor service. Stop the server first when using the bolt engine: the
database file is locked by a single process.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetOutput(cmd.ErrOrStderr())
			if verbose {
				logger.Init("debug")
			} else {
				logger.Init("warn")
			}
		},
	}

	rootCmd.PersistentFlags().String("engine", "", "store engine (bolt, redis, mongo, memory)")
	rootCmd.PersistentFlags().String("path", "", "bolt database directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewPutCommand())
	rootCmd.AddCommand(NewGetCommand())
	rootCmd.AddCommand(NewHasCommand())
	rootCmd.AddCommand(NewRemoveCommand())
	rootCmd.AddCommand(NewIDCommand())

	return rootCmd
}

// withService opens the store for the duration of fn.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	sc := cfg.StoreConfig()
	if v, _ := cmd.Flags().GetString("engine"); v != "" {
		sc.Engine = v
	}
	if v, _ := cmd.Flags().GetString("path"); v != "" {
		sc.Path = v
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(ctx, sc)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Errorf("closing store: %v", cerr)
		}
	}()

	svc, err := service.New(st, service.WithCacheSize(0))
	if err != nil {
		return err
	}
	return fn(ctx, svc)
}

// readContent returns the text a file would be stored as. PDFs are run
// through the same extractor as uploads unless raw is set.
func readContent(path string, raw bool) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if raw || !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return string(data), nil
	}
	return extract.NewPDF().Extract(data)
}

func NewPutCommand() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Store a file's text and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(args[0], raw)
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				id, err := svc.Create(ctx, content)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "store PDF bytes as-is instead of extracting text")
	return cmd
}

func NewGetCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := document.ParseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				rec, err := svc.Get(ctx, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !asJSON {
					_, err = fmt.Fprint(out, rec.Content)
					return err
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"id":      id.String(),
					"content": rec.Content,
					"created": rec.Created.Format(time.RFC3339Nano),
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print id, content and created time as JSON")
	return cmd
}

func NewHasCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "has <id>",
		Short: "Print whether a document is stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := document.ParseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				ok, err := svc.Exists(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ok)
				return nil
			})
		},
	}
}

func NewRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a stored document",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := document.ParseID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				return svc.Delete(ctx, id)
			})
		},
	}
}

func NewIDCommand() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "id <file>",
		Short: "Print the id a file would be stored under, without opening the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(args[0], raw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), document.IDFor(content))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "hash PDF bytes as-is instead of extracting text")
	return cmd
}
