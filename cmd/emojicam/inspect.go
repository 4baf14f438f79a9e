package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dudu/emojicam/internal/inference"
)

var inspectRuntimeLib string

var inspectCmd = &cobra.Command{
	Use:   "inspect <model.onnx>",
	Short: "Print the inputs and outputs of an ONNX model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modelPath := args[0]
		if _, err := os.Stat(modelPath); err != nil {
			return fmt.Errorf("model not found: %w", err)
		}

		if err := inference.Initialize(inspectRuntimeLib); err != nil {
			return err
		}
		defer inference.Shutdown()

		inputs, outputs, err := inference.Describe(modelPath)
		if err != nil {
			return err
		}

		fmt.Printf("Model: %s\n\n", modelPath)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "KIND\tNAME\tTYPE\tSHAPE")
		fmt.Fprintln(w, "----\t----\t----\t-----")
		for _, io := range inputs {
			fmt.Fprintf(w, "input\t%s\t%s\t%v\n", io.Name, io.DataType, io.Dimensions)
		}
		for _, io := range outputs {
			fmt.Fprintf(w, "output\t%s\t%s\t%v\n", io.Name, io.DataType, io.Dimensions)
		}
		return w.Flush()
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectRuntimeLib, "runtime-lib", "", "Path to the onnxruntime shared library")
	rootCmd.AddCommand(inspectCmd)
}
