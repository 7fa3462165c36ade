package initcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jsh-team/nodeworker/internal/config"
	"github.com/jsh-team/nodeworker/internal/utils/logger"
)

var force bool

// InitCmd writes a default project file
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default " + config.ConfigFileName,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigPath
		if path == "" {
			path = config.ConfigFileName
		}
		if err := config.WriteDefault(path, force); err != nil {
			return fmt.Errorf("init failed: %w", err)
		}
		logger.Info("Wrote %s", path)
		return nil
	},
}

func init() {
	InitCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")
}
