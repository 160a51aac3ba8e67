package canvas

import (
	"image/color"
	"strconv"
	"strings"
)

var namedColors = map[string]color.RGBA{
	"black":  {0, 0, 0, 255},
	"white":  {255, 255, 255, 255},
	"red":    {255, 0, 0, 255},
	"green":  {0, 128, 0, 255},
	"blue":   {0, 0, 255, 255},
	"yellow": {255, 255, 0, 255},
	"orange": {255, 165, 0, 255},
	"purple": {128, 0, 128, 255},
	"pink":   {255, 192, 203, 255},
	"gray":   {128, 128, 128, 255},
	"grey":   {128, 128, 128, 255},
	"brown":  {165, 42, 42, 255},
}

var eraserColor = color.RGBA{255, 0, 0, 255}

// parseColor understands the CSS colors browser clients send: a few names,
// #rgb and #rrggbb. Anything else is drawn black.
func parseColor(s string) color.RGBA {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return namedColors["black"]
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return namedColors["black"]
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return namedColors["black"]
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}
}
