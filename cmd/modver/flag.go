package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	modver "github.com/btt-go/btt-modver"
)

var (
	flagUser       userInput
	flagValues     []string
	flagVariations []string
)

var flagCmd = &cobra.Command{
	Use:   "flag <name>",
	Short: "Evaluate a single feature flag for one user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		name, err := modver.ValidateFlagName(args[0])
		if err != nil {
			return err
		}
		user, err := flagUser.user()
		if err != nil {
			return err
		}

		res, err := modver.New(cfg.Resolver, modver.WithLogger(logger))
		if err != nil {
			return err
		}
		defer res.Shutdown()

		result := res.Feature(context.Background(), name, user)
		out := map[string]any{"result": result}
		if len(flagValues) > 0 || len(flagVariations) > 0 {
			values := make([]any, 0, len(flagValues))
			for _, v := range flagValues {
				values = append(values, v)
			}
			out["allowed"] = modver.NewGate(name, values, flagVariations).Admits(result)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	userFlags(flagCmd, &flagUser)
	flagCmd.Flags().StringSliceVar(&flagValues, "allow-value", nil, "values that pass the gate")
	flagCmd.Flags().StringSliceVar(&flagVariations, "allow-variation", nil, "variations that pass the gate")
}
