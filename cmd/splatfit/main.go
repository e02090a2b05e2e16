package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/splatfit/splatfit/internal/splatfit"
)

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "splatfit [config.json]",
		Short: "Fit 3D Gaussians to a target image",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := "configs/fit.json"
			if len(args) > 0 {
				cfg = args[0]
			}
			return splatfit.Run(cfg)
		},
		SilenceUsage: true,
	}
}

func main() {
	splatfit.Debug = os.Getenv("DEBUG") != ""
	splatfit.UseLocks = os.Getenv("SKIP_LOCKS") == ""
	splatfit.PNG = os.Getenv("PNG") != ""
	if os.Getenv("PROFILE") != "" {
		f, err := os.Create("cpu.out")
		if err != nil {
			panic(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}()
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
