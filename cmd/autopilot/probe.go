package main

import (
	"github.com/spf13/cobra"

	"github.com/wippyai/autopilot-bridge/abi"
	"github.com/wippyai/autopilot-bridge/autopilot"
)

func newProbeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Start the runtime, resolve every method and report the start code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrinter(cmd.OutOrStdout())
			s, err := g.open(cmd.Context())
			if err != nil {
				p.failure(err.Error())
				return err
			}
			defer s.Close(cmd.Context())

			p.title("AutoPilot")
			p.field("session", s.ID())
			p.field("start code", autopilot.CodeOK)
			for _, m := range autopilot.Methods() {
				sig, err := abi.LowerDescriptor(m.Descriptor)
				if err != nil {
					return err
				}
				p.method(m.Name, m.Descriptor, sig.WitString())
			}
			return nil
		},
	}
}
