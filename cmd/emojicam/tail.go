package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dudu/emojicam/internal/config"
	"github.com/dudu/emojicam/internal/emotion"
	"github.com/dudu/emojicam/internal/timeline"
)

var (
	tailLogPath  string
	tailCount    int
	tailTimezone string
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print the most recent records of an emotion timeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := time.LoadLocation(tailTimezone)
		if err != nil {
			return fmt.Errorf("timezone %q: %w", tailTimezone, err)
		}

		records, err := timeline.ReadRecords(tailLogPath, loc)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No records logged yet.")
			return nil
		}
		if tailCount > 0 && len(records) > tailCount {
			records = records[len(records)-tailCount:]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprint(w, "TIME\tEMOTION")
		for _, name := range emotion.Names() {
			fmt.Fprintf(w, "\t%s", name)
		}
		fmt.Fprintln(w)
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s", rec.Time.Format(timeline.TimeLayout), rec.Label)
			for _, score := range rec.Prediction.Scores {
				fmt.Fprintf(w, "\t%.4f", score)
			}
			fmt.Fprintln(w)
		}
		return w.Flush()
	},
}

func init() {
	def := config.Default()
	f := tailCmd.Flags()
	f.StringVar(&tailLogPath, "log", def.Log.Path, "Emotion timeline CSV path")
	f.IntVarP(&tailCount, "lines", "n", 10, "Number of records to print, 0 for all")
	f.StringVar(&tailTimezone, "timezone", def.Log.Timezone, "Timezone the log was written in")
	rootCmd.AddCommand(tailCmd)
}
