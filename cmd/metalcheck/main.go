//go:build darwin

// Command metalcheck reports whether go-metal can import the emotion model
// for native Metal inference.
package main

import (
	"fmt"
	"os"

	"github.com/tsawler/go-metal/checkpoints"
)

const defaultModel = "models/emotion.onnx"

func main() {
	modelPath := defaultModel
	if len(os.Args) > 1 {
		modelPath = os.Args[1]
	}
	if modelPath == "-h" || modelPath == "--help" {
		fmt.Println("Usage: metalcheck [model.onnx]")
		fmt.Printf("\nChecks whether go-metal can import an ONNX model (default %s).\n", defaultModel)
		os.Exit(0)
	}

	if _, err := os.Stat(modelPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Importing %s with go-metal...\n", modelPath)
	checkpoint, err := checkpoints.NewONNXImporter().ImportFromONNX(modelPath)
	if err != nil {
		fmt.Printf("\nImport failed: %v\n", err)
		fmt.Println("The model uses operations go-metal does not support; emojicam uses ONNX Runtime instead.")
		os.Exit(1)
	}

	fmt.Printf("\nImported %d layers, %d weight tensors\n",
		len(checkpoint.ModelSpec.Layers), len(checkpoint.Weights))
	for i, layer := range checkpoint.ModelSpec.Layers {
		fmt.Printf("  %2d: %-24s %s\n", i+1, layer.Name, layer.Type)
	}
}
