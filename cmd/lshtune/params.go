package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/lshgo"
	"github.com/hupe1980/lshgo/codec"
)

func newParamsCmd() *cobra.Command {
	var (
		flags  paramFlags
		format string
	)

	cmd := &cobra.Command{
		Use:   "params",
		Short: "Print the parameters for a data set shape",
		Long: `Print the engine defaults for a data set shape, with flag overrides applied.

Examples:
  lshtune params --points 1000000 --dim 128
  lshtune params --points 5000 --dim 64 --family hyperplane --hash-bits 14 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, ok := codec.ByName(format)
			if !ok {
				return fmt.Errorf("unknown format %q (valid: yaml, json, go-json)", format)
			}

			ps, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			if err := lshgo.SaveParameters(cmd.OutOrStdout(), ps, c); err != nil {
				return err
			}
			if c.Name() != "yaml" {
				_, err = fmt.Fprintln(cmd.OutOrStdout())
			}
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml, json, go-json)")
	return cmd
}
