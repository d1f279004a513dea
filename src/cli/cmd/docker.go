package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sofmeright/imagetree/src/docker"
	"github.com/sofmeright/imagetree/src/output"
	"github.com/sofmeright/imagetree/src/runner"
)

var (
	rmFamily   string
	rmImage    string
	readmeFile string
)

func newDocker() *docker.Local {
	return docker.NewLocal(runner.NewExec())
}

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "List local images of the configured repository",
	RunE: func(cmd *cobra.Command, _ []string) error {
		images, err := newDocker().Images(cmd.Context(), cfg.Settings.Docker.Repo)
		if err != nil {
			return err
		}
		color := output.UseColor()
		sec := output.NewSection(os.Stdout, "Images", 0, color)
		for _, img := range images {
			sec.Row("%-48s %-10s %s", img.Ref(), img.Size, output.Dimmed(img.CreatedAt.Format("2006-01-02 15:04"), color))
		}
		if len(images) == 0 {
			sec.Row("no images for %s", cfg.Settings.Docker.Repo)
		}
		sec.Close()
		return nil
	},
}

var dockerPushCmd = &cobra.Command{
	Use:   "docker-push",
	Short: "Push every local tag of the configured repository",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return newDocker().PushAll(cmd.Context(), cfg.Settings.Docker.Repo)
	},
}

var dockerPushrmCmd = &cobra.Command{
	Use:   "docker-pushrm",
	Short: "Publish the README as the repository description",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return newDocker().PushReadme(cmd.Context(), cfg.Settings.Docker.Repo, readmeFile)
	},
}

var dockerRmiCmd = &cobra.Command{
	Use:   "docker-rmi [IMAGE...]",
	Short: "Remove images, ignoring ones that do not exist",
	Long: `Remove the given image references, or the image selected with
--build/--image. Missing images are reported and skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		refs := args
		if len(refs) == 0 {
			n, err := lookupNode(rmFamily, rmImage)
			if err != nil {
				return err
			}
			ref, err := n.ImageRef()
			if err != nil {
				return err
			}
			refs = []string{ref}
		}
		removed := newDocker().Remove(cmd.Context(), refs...)
		fmt.Printf("removed %d of %d image(s)\n", removed, len(refs))
		return nil
	},
}

var dockerPruneCmd = &cobra.Command{
	Use:   "docker-prune",
	Short: "Remove dangling images",
	RunE: func(cmd *cobra.Command, _ []string) error {
		newDocker().Prune(cmd.Context())
		return nil
	},
}

var dockerCleanCmd = &cobra.Command{
	Use:   "docker-clean",
	Short: "Remove every image of the tree, then prune dangling images",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var refs []string
		for _, n := range cfg.Tree.Nodes() {
			ref, err := n.ImageRef()
			if err != nil {
				return err
			}
			refs = append(refs, ref)
		}
		d := newDocker()
		removed := d.Remove(cmd.Context(), refs...)
		d.Prune(cmd.Context())
		fmt.Printf("removed %d of %d image(s)\n", removed, len(refs))
		return nil
	},
}

func init() {
	dockerPushrmCmd.Flags().StringVar(&readmeFile, "file", "README.md", "markdown file to publish")
	dockerRmiCmd.Flags().StringVar(&rmFamily, "build", "", "build family of the image to remove")
	dockerRmiCmd.Flags().StringVar(&rmImage, "image", "", "image to remove")

	rootCmd.AddCommand(imagesCmd, dockerPushCmd, dockerPushrmCmd, dockerRmiCmd, dockerPruneCmd, dockerCleanCmd)
}
