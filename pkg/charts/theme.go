package charts

import "image/color"

// Theme 图表配色
type Theme struct {
	Name       string
	Background color.NRGBA
	Foreground color.NRGBA
	Grid       color.NRGBA
	Accent     color.NRGBA
	Secondary  color.NRGBA
	Danger     color.NRGBA
}

var (
	// DarkTheme 默认深色主题
	DarkTheme = Theme{
		Name:       "dark",
		Background: color.NRGBA{R: 0x2B, G: 0x2D, B: 0x31, A: 0xFF},
		Foreground: color.NRGBA{R: 0xE8, G: 0xE8, B: 0xEA, A: 0xFF},
		Grid:       color.NRGBA{R: 0x40, G: 0x44, B: 0x4B, A: 0xFF},
		Accent:     color.NRGBA{R: 0x58, G: 0x65, B: 0xF2, A: 0xFF},
		Secondary:  color.NRGBA{R: 0x57, G: 0xF2, B: 0x87, A: 0xFF},
		Danger:     color.NRGBA{R: 0xED, G: 0x42, B: 0x45, A: 0xFF},
	}

	// LightTheme 浅色主题
	LightTheme = Theme{
		Name:       "light",
		Background: color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		Foreground: color.NRGBA{R: 0x2E, G: 0x33, B: 0x38, A: 0xFF},
		Grid:       color.NRGBA{R: 0xD8, G: 0xDC, B: 0xE0, A: 0xFF},
		Accent:     color.NRGBA{R: 0x58, G: 0x65, B: 0xF2, A: 0xFF},
		Secondary:  color.NRGBA{R: 0x2E, G: 0xA0, B: 0x55, A: 0xFF},
		Danger:     color.NRGBA{R: 0xC8, G: 0x32, B: 0x35, A: 0xFF},
	}
)

// ThemeByName 按名字取主题，未知名字回落到深色
func ThemeByName(name string) Theme {
	if name == "light" {
		return LightTheme
	}
	return DarkTheme
}
