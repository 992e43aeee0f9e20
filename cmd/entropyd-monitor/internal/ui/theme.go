package ui

import (
	"image/color"
	"runtime"

	"gioui.org/unit"
	"gioui.org/widget/material"
)

// Palette is the small set of colors the dashboard actually paints with:
// a background/surface/border triad for the sidebar and source cards, and
// a success/error pair for the FIPS/QA badges. There is no warning state
// in this dashboard (a source is either passing its health checks or it
// isn't), so unlike a general-purpose app theme this carries no unused
// Warning or multi-level Panel shading.
type Palette struct {
	Background color.NRGBA
	Surface    color.NRGBA
	Primary    color.NRGBA
	Text       color.NRGBA
	TextMuted  color.NRGBA
	Border     color.NRGBA
	Success    color.NRGBA
	Error      color.NRGBA
}

// Config holds the layout metrics the dashboard's cards and spacing use.
type Config struct {
	CornerRadius unit.Dp
	Spacing      unit.Dp
	Padding      unit.Dp
	FontTitle    unit.Sp
	FontBody     unit.Sp
	FontCaption  unit.Sp
}

// Theme wraps gio's material theme with the dashboard's palette and
// layout config.
type Theme struct {
	*material.Theme
	Palette Palette
	Config  Config
}

// NewTheme builds a Theme for the current OS, matching the host desktop's
// dark-mode convention rather than forcing a single look.
func NewTheme(mtheme *material.Theme) *Theme {
	t := &Theme{Theme: mtheme}

	switch runtime.GOOS {
	case "darwin":
		setupMacOSTheme(t)
	case "windows":
		setupWindowsTheme(t)
	default:
		setupLinuxTheme(t)
	}

	return t
}

func setupWindowsTheme(t *Theme) {
	t.Palette = Palette{
		Background: color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xFF},
		Surface:    color.NRGBA{R: 0x2C, G: 0x2C, B: 0x2C, A: 0xFF},
		Primary:    color.NRGBA{R: 0x00, G: 0x78, B: 0xD4, A: 0xFF},
		Text:       color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		TextMuted:  color.NRGBA{R: 0xA0, G: 0xA0, B: 0xA0, A: 0xFF},
		Border:     color.NRGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xFF},
		Success:    color.NRGBA{R: 0x6B, G: 0xBC, B: 0x0F, A: 0xFF},
		Error:      color.NRGBA{R: 0xE8, G: 0x11, B: 0x23, A: 0xFF},
	}

	t.Config = Config{
		CornerRadius: unit.Dp(4),
		Spacing:      unit.Dp(8),
		Padding:      unit.Dp(16),
		FontTitle:    unit.Sp(20),
		FontBody:     unit.Sp(14),
		FontCaption:  unit.Sp(12),
	}
}

func setupMacOSTheme(t *Theme) {
	t.Palette = Palette{
		Background: color.NRGBA{R: 0x1E, G: 0x1E, B: 0x1E, A: 0xFF},
		Surface:    color.NRGBA{R: 0x26, G: 0x26, B: 0x26, A: 0xFF},
		Primary:    color.NRGBA{R: 0x0A, G: 0x84, B: 0xFF, A: 0xFF},
		Text:       color.NRGBA{R: 0xF5, G: 0xF5, B: 0xF7, A: 0xFF},
		TextMuted:  color.NRGBA{R: 0x86, G: 0x86, B: 0x8B, A: 0xFF},
		Border:     color.NRGBA{R: 0x3A, G: 0x3A, B: 0x3C, A: 0xFF},
		Success:    color.NRGBA{R: 0x30, G: 0xD1, B: 0x58, A: 0xFF},
		Error:      color.NRGBA{R: 0xFF, G: 0x45, B: 0x3A, A: 0xFF},
	}

	t.Config = Config{
		CornerRadius: unit.Dp(10),
		Spacing:      unit.Dp(10),
		Padding:      unit.Dp(20),
		FontTitle:    unit.Sp(22),
		FontBody:     unit.Sp(13),
		FontCaption:  unit.Sp(11),
	}
}

// setupLinuxTheme matches the GNOME/Adwaita dark palette, which is also
// the fallback for any other GOOS the dashboard runs on headlessly.
func setupLinuxTheme(t *Theme) {
	t.Palette = Palette{
		Background: color.NRGBA{R: 0x1E, G: 0x1E, B: 0x1E, A: 0xFF},
		Surface:    color.NRGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xFF},
		Primary:    color.NRGBA{R: 0x35, G: 0x84, B: 0xE4, A: 0xFF},
		Text:       color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		TextMuted:  color.NRGBA{R: 0x9A, G: 0x9A, B: 0x9A, A: 0xFF},
		Border:     color.NRGBA{R: 0x3D, G: 0x3D, B: 0x3D, A: 0xFF},
		Success:    color.NRGBA{R: 0x33, G: 0xD1, B: 0x7A, A: 0xFF},
		Error:      color.NRGBA{R: 0xE0, G: 0x1B, B: 0x24, A: 0xFF},
	}

	t.Config = Config{
		CornerRadius: unit.Dp(6),
		Spacing:      unit.Dp(8),
		Padding:      unit.Dp(16),
		FontTitle:    unit.Sp(20),
		FontBody:     unit.Sp(14),
		FontCaption:  unit.Sp(12),
	}
}
