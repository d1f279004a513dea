package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sofmeright/imagetree/src/build"
	"github.com/sofmeright/imagetree/src/ctxlog"
	"github.com/sofmeright/imagetree/src/tree"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove generated build contexts, runnable dockerfiles and build logs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		removed, err := clean(afero.NewOsFs(), v.GetString(keyLogDir))
		for _, p := range removed {
			ctxlog.FromContext(cmd.Context()).Info("removed", "path", p)
		}
		return err
	},
}

func clean(fs afero.Fs, logDir string) ([]string, error) {
	var removed []string
	targets := []string{tree.Namespace, tree.RecordDir}

	logs, err := afero.Glob(fs, build.LogPath(logDir, "*"))
	if err != nil {
		return nil, err
	}
	targets = append(targets, logs...)

	for _, p := range targets {
		exists, err := afero.Exists(fs, p)
		if err != nil {
			return removed, err
		}
		if !exists {
			continue
		}
		if err := fs.RemoveAll(p); err != nil {
			return removed, fmt.Errorf("removing %s: %w", filepath.Clean(p), err)
		}
		removed = append(removed, p)
	}
	return removed, nil
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
