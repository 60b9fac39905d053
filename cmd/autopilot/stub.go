package main

import (
	"github.com/spf13/cobra"

	"github.com/wippyai/autopilot-bridge/guest"
)

func newStubCmd() *cobra.Command {
	var (
		out     string
		class   string
		realloc bool
	)

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Write a reference runtime image and AutoPilotC bundle",
		Long: `stub writes runtime.wasm and bundle/<class>.wasm to --out. The class
implements every method with simple arithmetic so the bridge can be exercised
without the real solvers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := guest.WriteBundle(out, class, guest.RuntimeOptions{Realloc: realloc}, guest.ClassOptions{})
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			p.field("runtime", b.RuntimePath)
			p.field("bundle", b.BundleDir)
			p.field("class", b.ClassPath)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&out, "out", "o", ".", "output directory")
	fl.StringVar(&class, "class", guest.DefaultClass, "binary class name")
	fl.BoolVar(&realloc, "realloc", false, "export cabi_realloc instead of malloc")
	return cmd
}
