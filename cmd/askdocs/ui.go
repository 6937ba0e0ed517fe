package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/askdocs/internal/models"
)

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

var (
	userPrompt      = color.New(color.FgGreen).PrintfFunc()
	assistantPrompt = color.New(color.FgCyan).PrintfFunc()
	sourceLine      = color.New(color.FgHiBlack).PrintfFunc()
)

func printResult(result models.QueryResult) {
	if result.Error != "" {
		color.Red("\n%s\n", result.Answer)
		return
	}
	assistantPrompt("\nAssistant: ")
	fmt.Println(result.Answer)

	if len(result.Sources) == 0 {
		return
	}
	fmt.Println()
	sourceLine("Sources:\n")
	for i, s := range result.Sources {
		sourceLine("  [%d] %s (relevance: %.2f)\n", i+1, s.Source, s.Score)
	}
}

func printStats(stats models.CollectionStats) {
	color.Cyan("Collection %s", stats.Name)
	fmt.Printf("  status:  %s\n", stats.Status)
	fmt.Printf("  points:  %d\n", stats.PointCount)
	fmt.Printf("  vectors: %d\n", stats.VectorCount)
}
