package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imagestack/imagestack/pkg/console"
	"github.com/imagestack/imagestack/pkg/lock"
)

// imageSummary is the JSON-serializable view of one locked build target,
// emitted by `images` for consumption by CI matrix generators.
type imageSummary struct {
	ImageName string   `json:"image_name"`
	ImageTag  string    `json:"image_tag"`
	Target    string   `json:"target"`
	Base      string   `json:"base"`
	Features  []string `json:"features"`
}

func newImagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "images",
		Short: "Print the JSON summary of every locked build target",
		RunE:  runImages,
	}
}

func runImages(cmd *cobra.Command, args []string) error {
	l, err := loadLock()
	if err != nil {
		return err
	}

	summaries := make([]imageSummary, 0, len(l.Builds))
	for _, build := range l.Builds {
		summaries = append(summaries, toSummary(build))
	}

	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing image summary: %w", err)
	}
	console.Output(string(data))
	return nil
}

func toSummary(build lock.SingleBuild) imageSummary {
	features := make([]string, len(build.Features))
	for i, f := range build.Features {
		features[i] = f.String()
	}
	return imageSummary{
		ImageName: build.ImageName,
		ImageTag:  build.ImageTag,
		Target:    build.Target,
		Base:      build.Base.String(),
		Features:  features,
	}
}
