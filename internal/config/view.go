package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/ffview/internal/transform"
	"github.com/smazurov/ffview/internal/viewport"
)

// ErrNoViewSection is returned by LoadViewPreset for a file without [view].
var ErrNoViewSection = errors.New("no [view] section")

// ViewPreset is the [view] table of the config file. Unset keys leave the
// view alone.
type ViewPreset struct {
	Grid        *bool  `toml:"grid"`
	GridX       *int   `toml:"gx"`
	GridY       *int   `toml:"gy"`
	GridSpacing *int   `toml:"gs"`
	GridColor   string `toml:"gcol"`
	FalseColor  string `toml:"fcol"`
	Zoom        *int   `toml:"zoom"`
}

// LoadViewPreset reads the [view] table of path.
func LoadViewPreset(path string) (ViewPreset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ViewPreset{}, err
	}
	var raw struct {
		View *ViewPreset `toml:"view"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return ViewPreset{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if raw.View == nil {
		return ViewPreset{}, ErrNoViewSection
	}
	return *raw.View, raw.View.Validate()
}

// Validate checks the colour and palette names.
func (p ViewPreset) Validate() error {
	if p.GridColor != "" {
		if _, err := ParseColor(p.GridColor); err != nil {
			return err
		}
	}
	if p.FalseColor != "" {
		if _, ok := transform.ParseMode(p.FalseColor); !ok {
			return fmt.Errorf("unknown false colour palette %q", p.FalseColor)
		}
	}
	return nil
}

// Apply sets the preset values inside a view batch. Invalid colour or
// palette names are skipped; LoadViewPreset reports them.
func (p ViewPreset) Apply(b *viewport.Batch) {
	if p.Zoom != nil {
		b.SetZoom(*p.Zoom)
	}
	if p.GridX != nil {
		b.SetGx(*p.GridX)
	}
	if p.GridY != nil {
		b.SetGy(*p.GridY)
	}
	if p.GridSpacing != nil {
		b.SetGridSpacing(*p.GridSpacing)
	}
	if p.GridColor != "" {
		if col, err := ParseColor(p.GridColor); err == nil {
			b.SetGridColor(col)
		}
	}
	if p.Grid != nil {
		b.SetGridEnabled(*p.Grid)
	}
	if p.FalseColor != "" {
		if m, ok := transform.ParseMode(p.FalseColor); ok {
			b.SetFalseColor(m)
		}
	}
}

// ParseColor parses "#rrggbb", "0xrrggbb" or a decimal 0xRRGGBB value.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	var (
		v   uint64
		err error
	)
	switch {
	case strings.HasPrefix(s, "#"):
		v, err = strconv.ParseUint(s[1:], 16, 32)
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err = strconv.ParseUint(s[2:], 16, 32)
	default:
		v, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil || v > 0xffffff {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	return viewport.ColorFromValue(uint32(v)), nil
}
