package model

// GCodeProfile describes the dialect of one CNC controller.
type GCodeProfile struct {
	Name          string   `json:"name" yaml:"name"`
	Description   string   `json:"description" yaml:"description"`
	Units         string   `json:"units" yaml:"units"`                   // "mm" or "inches"
	StartCode     []string `json:"start_code" yaml:"start_code"`         // Commands at start of file
	SpindleStart  string   `json:"spindle_start" yaml:"spindle_start"`
	SpindleStop   string   `json:"spindle_stop" yaml:"spindle_stop"`
	RapidMove     string   `json:"rapid_move" yaml:"rapid_move"`
	FeedMove      string   `json:"feed_move" yaml:"feed_move"`
	EndCode       []string `json:"end_code" yaml:"end_code"`
	CommentPrefix string   `json:"comment_prefix" yaml:"comment_prefix"`
	CommentSuffix string   `json:"comment_suffix" yaml:"comment_suffix"` // e.g. ")" for Fanuc style comments
	DecimalPlaces int      `json:"decimal_places" yaml:"decimal_places"`
}

// GCodeProfiles are the built-in dialects. The last entry is the fallback.
var GCodeProfiles = []GCodeProfile{
	{
		Name:          "Grbl",
		Description:   "Grbl controllers, inch units",
		Units:         "inches",
		StartCode:     []string{"G90", "G20", "G17"},
		SpindleStart:  "M3 S%d",
		SpindleStop:   "M5",
		RapidMove:     "G0",
		FeedMove:      "G1",
		EndCode:       []string{"G0 X0 Y0", "M5", "M2"},
		CommentPrefix: ";",
		DecimalPlaces: 4,
	},
	{
		Name:          "Fanuc",
		Description:   "Fanuc style controllers with parenthesised comments",
		Units:         "inches",
		StartCode:     []string{"G90", "G20", "G17", "G94"},
		SpindleStart:  "M3 S%d",
		SpindleStop:   "M5",
		RapidMove:     "G00",
		FeedMove:      "G01",
		EndCode:       []string{"G28 X0 Y0", "M5", "M30"},
		CommentPrefix: "(",
		CommentSuffix: ")",
		DecimalPlaces: 4,
	},
	{
		Name:          "Generic",
		Description:   "Generic standard G-code",
		Units:         "inches",
		StartCode:     []string{"G90", "G20"},
		SpindleStart:  "M3 S%d",
		SpindleStop:   "M5",
		RapidMove:     "G0",
		FeedMove:      "G1",
		EndCode:       []string{"G0 X0 Y0", "M5", "M2"},
		CommentPrefix: ";",
		DecimalPlaces: 3,
	},
}

// GetProfile returns a profile by name, or the Generic profile if not found.
func GetProfile(name string) GCodeProfile {
	for _, p := range GCodeProfiles {
		if p.Name == name {
			return p
		}
	}
	return GCodeProfiles[len(GCodeProfiles)-1]
}

// GetProfileNames returns the names of all built-in profiles.
func GetProfileNames() []string {
	names := make([]string, 0, len(GCodeProfiles))
	for _, p := range GCodeProfiles {
		names = append(names, p.Name)
	}
	return names
}
