package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/snapfind/internal/embeddings"
)

// newRuntimeInstaller is swapped in tests.
var newRuntimeInstaller = embeddings.DefaultRuntimeInstaller

func newSetupCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Download the ONNX runtime used for local embeddings",
		Long: `Download the ONNX runtime library required by the local CLIP provider.
The library is installed to:
  ~/.config/snapfind/lib/

The downloaded library is loaded once before it replaces an existing install.

If ONNX_PATH environment variable is set, that path takes precedence.

The CLIP model itself (text_model.onnx, vision_model.onnx, tokenizer.json)
must be placed in embeddings.model_dir.

Examples:
  # Download ONNX runtime
  snapfind setup

  # Force re-download even if already installed
  snapfind setup --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if path := embeddings.GetONNXLibraryPath(); path != "" {
					cmd.Printf("ONNX runtime already installed at: %s\n", path)
					cmd.Println("Use --force to re-download.")
					return nil
				}
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			inst := newRuntimeInstaller(cmd.OutOrStdout())
			cmd.Printf("Downloading ONNX runtime v%s for %s/%s...\n", inst.Version, inst.GOOS, inst.GOARCH)
			path, err := inst.Install(ctx)
			if err != nil {
				return fmt.Errorf("failed to install ONNX runtime: %w", err)
			}
			cmd.Printf("Verified and installed ONNX runtime to: %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Force re-download even if ONNX runtime exists")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("snapfind %s (commit %s, built %s)\n", version, gitCommit, buildDate)
		},
	}
}
