package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofmeright/imagetree/src/build"
	"github.com/sofmeright/imagetree/src/output"
)

var (
	bFamilies []string
	bImage    string
	bPush     bool
	bDryRun   bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Render and build images, parents first",
	Long: `Render build contexts for the selected images and build them.

Every image's parent chain is built first. Without --build all families are
built; --image restricts each selected family to one image.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringSliceVar(&bFamilies, "build", nil, "build families to build (default: all)")
	buildCmd.Flags().StringVar(&bImage, "image", "", "only build this image of each selected family")
	buildCmd.Flags().BoolVar(&bPush, "push", false, "push images after building")
	buildCmd.Flags().BoolVar(&bDryRun, "dry-run", false, "render build contexts without building")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	w := os.Stdout
	color := output.UseColor()
	start := time.Now()

	o, err := newOrchestrator(ctx, pipelineOptions{push: bPush, dryRun: bDryRun})
	if err != nil {
		return err
	}

	output.ContextBlock(w, []output.KV{
		{Key: "Repo", Value: cfg.Settings.Docker.Repo},
		{Key: "Version", Value: cfg.Settings.Version},
		{Key: "Engine", Value: o.Builder.Name()},
		{Key: "Commit", Value: o.Labels[build.LabelRevision]},
	})

	output.SectionStart(w, "imagetree_build", "Build")
	runErr := o.Run(ctx, build.Selection{Families: bFamilies, Image: bImage})
	output.SectionEnd(w, "imagetree_build")

	renderResults(w, o.Results, time.Since(start), color)
	return runErr
}

func renderResults(w io.Writer, results []build.StepResult, elapsed time.Duration, color bool) {
	if len(results) == 0 {
		return
	}

	sec := output.NewSection(w, "Build", elapsed, color)
	for i, r := range results {
		if i > 0 && len(r.Layers) > 0 {
			sec.Separator()
		}
		output.RowStatus(sec, r.Name, output.Dimmed(stepDetail(r), color), r.Status, color)
		for _, layer := range r.Layers {
			timing := build.FormatLayerTiming(layer)
			if layer.Cached {
				timing = output.Dimmed(timing, color)
			}
			sec.Row("  %-8s%-42s %s", layer.Instruction, layer.Detail, timing)
		}
	}
	sec.Close()

	status := build.StatusSuccess
	sum := output.NewSection(w, "Summary", 0, color)
	for _, r := range results {
		for _, img := range r.Images {
			output.SummaryRow(w, r.Name, r.Status, img, color)
		}
		if r.Record != "" {
			output.SummaryRow(w, "", r.Status, r.Record, color)
		}
		if r.Status == build.StatusFailed {
			status = build.StatusFailed
		}
	}
	sum.Separator()
	output.SummaryTotal(w, elapsed, status, color)
	sum.Close()
}

func stepDetail(r build.StepResult) string {
	switch {
	case r.Status == build.StatusPlanned:
		return "dry run"
	case len(r.Layers) > 0:
		return fmt.Sprintf("%s, %d/%d layers cached", r.Duration.Round(100*time.Millisecond), r.CachedLayers(), len(r.Layers))
	}
	return r.Duration.Round(100 * time.Millisecond).String()
}
