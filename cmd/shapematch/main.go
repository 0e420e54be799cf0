// Command shapematch runs one shape-template search against one search
// image end to end: loads both images, builds the search pyramid and the
// template's angle/scale variants, runs the coarse-to-fine match, and
// prints the resulting match points as a table, optionally persisting
// them to a history store, publishing them over MQTT, and rendering a
// visualization of the best hit.
//
// Flag-based configuration, a "Loaded ... parameters" printf preamble, a
// tabular results dump, and os.Exit(1) on failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"os"

	"github.com/tdewolff/canvas"
	"gocv.io/x/gocv"

	"shapematch/internal/detector"
	"shapematch/internal/feature"
	"shapematch/internal/imageio"
	"shapematch/internal/publish"
	"shapematch/internal/render"
	"shapematch/internal/shapeinfo"
	"shapematch/internal/store"
	"shapematch/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version information and exit")
	templatePath := flag.String("template", "", "path to the template image")
	templateMaskPath := flag.String("template-mask", "", "optional path to the template mask image")
	searchPath := flag.String("search", "", "path to the search image")

	angleLo := flag.Float64("angle-lo", 0, "minimum search angle in degrees")
	angleHi := flag.Float64("angle-hi", 0, "maximum search angle in degrees")
	angleStep := flag.Float64("angle-step", 1, "angle step in degrees")
	scaleLo := flag.Float64("scale-lo", 1, "minimum search scale")
	scaleHi := flag.Float64("scale-hi", 1, "maximum search scale")
	scaleStep := flag.Float64("scale-step", 0.1, "scale step")

	threshold := flag.Float64("threshold", 80, "match score threshold, 0-100")
	levels := flag.Int("levels", 2, "pyramid level count")
	numFeatures := flag.Int("num-features", feature.DefaultParams().NumFeatures, "features per template variant")

	historyPath := flag.String("history", "", "optional sqlite path to append match history")
	mqttURL := flag.String("mqtt", "", "optional MQTT broker URL to publish matches to")
	drawPath := flag.String("draw", "", "optional output image path for a match visualization")

	flag.Parse()

	if *showVersion {
		fmt.Printf("shapematch %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
		return
	}

	if *templatePath == "" || *searchPath == "" {
		fmt.Println("Usage: shapematch -template <path> -search <path> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	templateImg, err := imageio.LoadImage(*templatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load template: %v\n", err)
		os.Exit(1)
	}
	defer templateImg.Close()

	searchImg, err := imageio.LoadImage(*searchPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load search image: %v\n", err)
		os.Exit(1)
	}
	defer searchImg.Close()

	templateMask := gocv.NewMat()
	defer templateMask.Close()
	if *templateMaskPath != "" {
		m, err := imageio.LoadImage(*templateMaskPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load template mask: %v\n", err)
			os.Exit(1)
		}
		templateMask.Close()
		templateMask = m
	}

	fmt.Printf("Loaded template %dx%d, search image %dx%d\n",
		templateImg.Cols(), templateImg.Rows(), searchImg.Cols(), searchImg.Rows())
	fmt.Printf("\nSearch parameters:\n")
	fmt.Printf("  Angle:  %.1f - %.1f step %.2f\n", *angleLo, *angleHi, *angleStep)
	fmt.Printf("  Scale:  %.2f - %.2f step %.3f\n", *scaleLo, *scaleHi, *scaleStep)
	fmt.Printf("  Threshold: %.1f\n", *threshold)
	fmt.Printf("  Levels: %d\n", *levels)
	fmt.Printf("  Features: %d\n", *numFeatures)

	producer, err := shapeinfo.NewProducer(templateImg, templateMask, shapeinfo.Config{
		AngleRange: shapeinfo.Range{Lo: *angleLo, Hi: *angleHi, Step: *angleStep},
		ScaleRange: shapeinfo.Range{Lo: *scaleLo, Hi: *scaleHi, Step: *scaleStep},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build shape-info producer: %v\n", err)
		os.Exit(1)
	}
	defer producer.Close()

	det := detector.New(nil)

	if err := det.AddSource("search", searchImg, *levels, gocv.NewMat(), detector.DefaultPyramidParams()); err != nil {
		fmt.Fprintf(os.Stderr, "add_source failed: %v\n", err)
		os.Exit(1)
	}

	featureParams := feature.DefaultParams()
	featureParams.NumFeatures = *numFeatures
	templateID, err := det.AddTemplate("", templateImg, *levels, featureParams, templateMask, producer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "add_template failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nRegistered template class %q\n", templateID)

	matchParams := detector.MatchParams{
		ScoreThreshold: *threshold,
		AngleStep:      *angleStep,
		ScaleStep:      *scaleStep,
	}
	if err := det.Match(context.Background(), "search", matchParams); err != nil {
		fmt.Fprintf(os.Stderr, "match failed: %v\n", err)
		os.Exit(1)
	}

	points, err := det.MatchClass(templateID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "match_class failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n%-8s %8s %8s %10s\n", "Rank", "X", "Y", "Similarity")
	for i, pt := range points {
		fmt.Printf("%-8d %8d %8d %10.2f\n", i+1, pt.X, pt.Y, pt.Similarity)
	}
	fmt.Printf("\nTotal: %d matches\n", len(points))

	if *historyPath != "" {
		s, err := store.OpenStore(*historyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open history store: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()
		if err := s.Append(templateID, points); err != nil {
			fmt.Fprintf(os.Stderr, "failed to append to history store: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Appended %d matches to %s\n", len(points), *historyPath)
	}

	if *mqttURL != "" {
		pub, err := publish.NewPublisher(*mqttURL, "shapematch", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to MQTT broker: %v\n", err)
			os.Exit(1)
		}
		defer pub.Close()
		if err := pub.Publish(templateID, points); err != nil {
			fmt.Fprintf(os.Stderr, "failed to publish matches: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Published %d matches to %s\n", len(points), *mqttURL)
	}

	if *drawPath != "" && len(points) > 0 {
		tmpl, err := det.Template(templateID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to draw: %v\n", err)
			os.Exit(1)
		}
		best := points[0]
		variant := tmpl.Variants[0][best.VariantIdx]
		c, err := render.Draw(searchImg, variant, best, render.DefaultOptions())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to draw: %v\n", err)
			os.Exit(1)
		}
		rgba := render.ToRGBA(c, canvas.DPMM(1.0))

		outFile, err := os.Create(*drawPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create %s: %v\n", *drawPath, err)
			os.Exit(1)
		}
		if err := png.Encode(outFile, rgba); err != nil {
			outFile.Close()
			fmt.Fprintf(os.Stderr, "failed to write visualization: %v\n", err)
			os.Exit(1)
		}
		outFile.Close()
		fmt.Printf("Wrote visualization to %s\n", *drawPath)
	}
}
