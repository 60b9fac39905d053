package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type focusFlags struct {
	measure string
	samples string
	width   int32
	height  int32
	fill    int16
	psf     float64
}

func newFocusCmd(g *globalFlags) *cobra.Command {
	f := &focusFlags{}

	cmd := &cobra.Command{
		Use:   "focus",
		Short: "Compute a focus measure of a 16-bit image",
		Long: `focus computes dcts16bit or tenengrad16bit of a width x height image.
The image is read from --samples as raw little-endian int16 values, or
filled with --fill when no file is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			samples, err := f.load()
			if err != nil {
				return err
			}

			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			var measure float64
			switch f.measure {
			case "dcts":
				measure, err = s.DCTS16(cmd.Context(), samples, f.width, f.height, f.psf)
			case "tenengrad":
				measure, err = s.Tenengrad16(cmd.Context(), samples, f.width, f.height, f.psf)
			}
			if err != nil {
				if msg, ok, _ := s.LastException(cmd.Context()); ok {
					return fmt.Errorf("%w: %s", err, msg)
				}
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			p.field(f.measure, measure)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.measure, "measure", "m", "dcts", "focus measure: dcts or tenengrad")
	fl.StringVar(&f.samples, "samples", "", "raw little-endian int16 image file")
	fl.Int32Var(&f.width, "width", 0, "image width")
	fl.Int32Var(&f.height, "height", 0, "image height")
	fl.Int16Var(&f.fill, "fill", 0, "constant sample value when --samples is not given")
	fl.Float64Var(&f.psf, "psf", 3, "point spread function support diameter")
	return cmd
}

func (f *focusFlags) load() ([]int16, error) {
	if f.measure != "dcts" && f.measure != "tenengrad" {
		return nil, fmt.Errorf("unknown measure %q (dcts or tenengrad)", f.measure)
	}
	n := int(f.width) * int(f.height)
	if n < 0 {
		n = 0
	}

	if f.samples == "" {
		samples := make([]int16, n)
		for i := range samples {
			samples[i] = f.fill
		}
		return samples, nil
	}

	data, err := os.ReadFile(f.samples)
	if err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	if len(data) != 2*n {
		return nil, fmt.Errorf("%s has %d bytes, a %dx%d image needs %d", f.samples, len(data), f.width, f.height, 2*n)
	}
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return samples, nil
}
