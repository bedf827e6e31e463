package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/smazurov/ffview/internal/transform"
)

// PaletteEntry is one luma level of a false colour palette.
type PaletteEntry struct {
	Index int    `json:"index" yaml:"index"`
	Hex   string `json:"hex" yaml:"hex"`
	R     uint8  `json:"r" yaml:"r"`
	G     uint8  `json:"g" yaml:"g"`
	B     uint8  `json:"b" yaml:"b"`
	Y     uint8  `json:"y" yaml:"y"`
	U     uint8  `json:"u" yaml:"u"`
	V     uint8  `json:"v" yaml:"v"`
}

// CreatePaletteCmd creates the palette command.
func CreatePaletteCmd() *cobra.Command {
	var format, colorMode string
	var step int

	cmd := &cobra.Command{
		Use:       "palette <rainbow|iron>",
		Short:     "Print a false colour palette",
		Long:      `Prints the RGB and YUV values a false colour palette maps luma levels to.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"rainbow", "iron"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, ok := transform.ParseMode(args[0])
			if !ok || mode == transform.ModeOff {
				return fmt.Errorf("unknown palette %q (want rainbow or iron)", args[0])
			}
			if step < 1 || step > 256 {
				return fmt.Errorf("step must be between 1 and 256, got %d", step)
			}
			swatch, err := useColor(colorMode, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			entries := paletteEntries(transform.PaletteFor(mode), step)
			return writeOutput(cmd.OutOrStdout(), format, entries, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "LUMA\tHEX\tR\tG\tB\tY\tU\tV")
				for _, e := range entries {
					fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d", e.Index, e.Hex, e.R, e.G, e.B, e.Y, e.U, e.V)
					if swatch {
						fmt.Fprintf(tw, "\t\x1b[48;2;%d;%d;%dm    \x1b[0m", e.R, e.G, e.B)
					}
					fmt.Fprintln(tw)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", FormatTable, "Output format (table, json, yaml)")
	cmd.Flags().IntVar(&step, "step", 16, "Print every n-th luma level")
	cmd.Flags().StringVar(&colorMode, "color", "auto", "Colour swatches in table output (auto, always, never)")
	return cmd
}

// paletteEntries samples p every step levels. The last level is always
// included.
func paletteEntries(p *transform.Palette, step int) []PaletteEntry {
	var entries []PaletteEntry
	for i := 0; i < 256; i += step {
		entries = append(entries, paletteEntry(p, i))
	}
	if entries[len(entries)-1].Index != 255 {
		entries = append(entries, paletteEntry(p, 255))
	}
	return entries
}

func paletteEntry(p *transform.Palette, i int) PaletteEntry {
	return PaletteEntry{
		Index: i,
		Hex:   fmt.Sprintf("#%02x%02x%02x", p.R[i], p.G[i], p.B[i]),
		R:     p.R[i], G: p.G[i], B: p.B[i],
		Y: p.Y[i], U: p.U[i], V: p.V[i],
	}
}

// useColor resolves --color. auto enables swatches only when w is a
// terminal.
func useColor(mode string, w io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		f, ok := w.(*os.File)
		if !ok {
			return false, nil
		}
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()), nil
	}
	return false, fmt.Errorf("unknown color mode %q (want auto, always or never)", mode)
}
