package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	modver "github.com/btt-go/btt-modver"
)

var (
	resolveUser userInput
	resolveApp  string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <product>",
	Short: "Resolve module versions for one user and print them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		user, err := resolveUser.user()
		if err != nil {
			return err
		}

		res, err := modver.New(cfg.Resolver, modver.WithLogger(logger))
		if err != nil {
			return err
		}
		defer res.Shutdown()

		ctx := context.Background()
		versions, err := res.ModuleVersions(ctx, args[0], user)
		if err != nil {
			return err
		}
		if resolveApp != "" {
			doc, err := modver.DocumentVersion(resolveApp, versions)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "document %s: %s (%s)\n", modver.DocumentKey(resolveApp), doc.Hash, doc.Time)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(versions)
	},
}

func init() {
	userFlags(resolveCmd, &resolveUser)
	resolveCmd.Flags().StringVar(&resolveApp, "app", "", "require the <app>-html document version to be resolved")
}
