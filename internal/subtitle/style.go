package subtitle

import (
	"fmt"
	"sort"
	"strings"
)

// Color is an RGBA color. ASS renders colors as &HAABBGGRR (alpha, blue,
// green, red); alpha 0 is fully opaque.
type Color struct {
	R uint8
	G uint8
	B uint8
	A uint8
}

// ASS returns the color in the ASS native notation.
func (c Color) ASS() string {
	return fmt.Sprintf("&H%02X%02X%02X%02X", c.A, c.B, c.G, c.R)
}

var (
	colorWhite  = Color{R: 255, G: 255, B: 255}
	colorYellow = Color{R: 255, G: 255}
	colorBlack  = Color{}
)

// StyleProfile is an immutable bundle of rendering parameters consumed by the
// ASS emitter and the video compositor. Alignment uses the numpad convention
// (2 = bottom center); MarginV is the distance from the frame edge.
type StyleProfile struct {
	Name         string
	FontName     string
	FontSize     int
	Primary      Color
	Secondary    Color
	Outline      Color
	Back         Color
	Bold         bool
	BorderStyle  int
	OutlineWidth int
	Shadow       int
	Alignment    int
	MarginV      int
}

// DefaultProfileName is the profile applied when the configured name is
// unknown. Resolution never fails: an unrecognized name falls back here.
const DefaultProfileName = "classic"

var profiles = map[string]StyleProfile{
	"classic": {
		Name:         "classic",
		FontName:     "Arial Black",
		FontSize:     14,
		Primary:      colorWhite,
		Secondary:    colorYellow,
		Outline:      colorBlack,
		Back:         colorBlack,
		Bold:         true,
		BorderStyle:  1,
		OutlineWidth: 1,
		Alignment:    2,
		MarginV:      60,
	},
	"bold": {
		Name:        "bold",
		FontName:    "Arial Black",
		FontSize:    16,
		Primary:     colorWhite,
		Secondary:   colorYellow,
		Outline:     colorBlack,
		Back:        colorBlack,
		Bold:        true,
		BorderStyle: 1,
		Alignment:   2,
		MarginV:     60,
	},
	"minimal": {
		Name:         "minimal",
		FontName:     "Arial",
		FontSize:     16,
		Primary:      colorWhite,
		Secondary:    colorYellow,
		Outline:      colorBlack,
		Back:         colorBlack,
		BorderStyle:  1,
		OutlineWidth: 1,
		Shadow:       1,
		Alignment:    2,
		MarginV:      40,
	},
}

// ResolveStyle maps a profile name to its concrete style. Unknown names fall
// back to the default profile.
func ResolveStyle(name string) StyleProfile {
	if profile, ok := profiles[strings.ToLower(strings.TrimSpace(name))]; ok {
		return profile
	}
	return profiles[DefaultProfileName]
}

// KnownProfile reports whether a profile name resolves without falling back.
func KnownProfile(name string) bool {
	_, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// ProfileNames returns the sorted list of available profile names.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
