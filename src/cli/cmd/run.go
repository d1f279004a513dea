package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sofmeright/imagetree/src/docker"
	"github.com/sofmeright/imagetree/src/tree"
)

var (
	runFamily  string
	runImage   string
	runRepo    string
	runVersion string
	runMount   string
	runPort    int
)

// imageRef resolves the selected node's image, honoring --repo/--version.
func imageRef() (string, error) {
	n, err := lookupNode(runFamily, runImage)
	if err != nil {
		return "", err
	}
	repo := runRepo
	if repo == "" {
		repo = cfg.Settings.Docker.Repo
	}
	version := runVersion
	if version == "" {
		version = cfg.Settings.Version
	}
	return repo + ":" + tree.FormatTag(n.KeyPath(), version), nil
}

var bashCmd = &cobra.Command{
	Use:   "bash",
	Short: "Open a shell in a built image",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ref, err := imageRef()
		if err != nil {
			return err
		}
		return newDocker().Shell(cmd.Context(), ref)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a built image with the notebook port published",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ref, err := imageRef()
		if err != nil {
			return err
		}
		opts := docker.RunOptions{Port: runPort, Mount: runMount}
		if opts.Mount == "" {
			opts.Mount = cfg.Settings.Docker.Mount
		}
		if opts.Mount != "" {
			if opts.HostDir, err = os.Getwd(); err != nil {
				return fmt.Errorf("getting working directory: %w", err)
			}
		}
		return newDocker().Run(cmd.Context(), ref, opts)
	},
}

var r2dCmd = &cobra.Command{
	Use:   "r2d",
	Short: "Build an image, then rebuild its runnable Dockerfile with repo2docker",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		n, err := lookupNode(runFamily, runImage)
		if err != nil {
			return err
		}
		if !n.IsTerminal() {
			return &tree.ConfigurationError{Path: n.ID(), Msg: "intermediate images have no runnable dockerfile"}
		}

		o, err := newOrchestrator(ctx, pipelineOptions{})
		if err != nil {
			return err
		}
		if err := o.Build(ctx, n); err != nil {
			return err
		}
		tag, err := n.Tag()
		if err != nil {
			return err
		}
		return newDocker().Repo2Docker(ctx, filepath.Dir(n.DockerfileRecordPath()), "r2d-"+tag)
	},
}

func init() {
	for _, c := range []*cobra.Command{bashCmd, runCmd, r2dCmd} {
		c.Flags().StringVar(&runFamily, "build", "", "build family")
		c.Flags().StringVar(&runImage, "image", "", "image within the family")
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{bashCmd, runCmd} {
		c.Flags().StringVar(&runRepo, "repo", "", "image repository (default: docker.repo)")
		c.Flags().StringVar(&runVersion, "version", "", "image version (default: version)")
	}
	runCmd.Flags().StringVar(&runMount, "mount", "", "container path to mount the working directory at (default: docker.mount)")
	runCmd.Flags().IntVar(&runPort, "port", docker.DefaultPort, "port to publish")
}
