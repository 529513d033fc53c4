package main

import (
	"fmt"

	"github.com/navbuddy/navbuddy/internal/clifmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func buildModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available on the Ollama host",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := oracleClientFromViper()
			if err := client.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("ollama unreachable at %s: %w", viper.GetString("oracle.base_url"), err)
			}
			models, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			configured := viper.GetString("oracle.model")
			for _, m := range models {
				line := fmt.Sprintf("%s\t%d", m.Name, m.Size)
				if m.Name == configured {
					line = clifmt.Success(line + "\t(configured)")
				}
				fmt.Println(line)
			}
			if len(models) == 0 {
				fmt.Println(clifmt.Dim("no models installed"))
			}
			return nil
		},
	}
}
