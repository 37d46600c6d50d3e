package model

// CNCSettings holds the machining parameters used for G-code output.
type CNCSettings struct {
	ToolDiameter float64 `json:"tool_diameter" yaml:"tool_diameter"` // End mill diameter
	FeedRate     float64 `json:"feed_rate" yaml:"feed_rate"`         // Cutting feed rate per minute
	PlungeRate   float64 `json:"plunge_rate" yaml:"plunge_rate"`     // Plunge feed rate per minute
	SpindleSpeed int     `json:"spindle_speed" yaml:"spindle_speed"` // RPM
	SafeZ        float64 `json:"safe_z" yaml:"safe_z"`               // Safe retract height
	CutDepth     float64 `json:"cut_depth" yaml:"cut_depth"`         // Total material thickness
	PassDepth    float64 `json:"pass_depth" yaml:"pass_depth"`       // Depth per pass
	Profile      string  `json:"profile" yaml:"profile"`             // G-code dialect name
}

// AppConfig holds the persisted defaults for the CLI and the HTTP service.
type AppConfig struct {
	Nesting    Settings    `json:"nesting" yaml:"nesting"`
	CNC        CNCSettings `json:"cnc" yaml:"cnc"`
	Debug      bool        `json:"debug" yaml:"debug"`             // Draw placement boundaries in DXF output
	ListenAddr string      `json:"listen_addr" yaml:"listen_addr"` // HTTP service address
}

// DefaultCNCSettings returns inch-based defaults matching the default sheet.
func DefaultCNCSettings() CNCSettings {
	return CNCSettings{
		ToolDiameter: 0.25,
		FeedRate:     60,
		PlungeRate:   20,
		SpindleSpeed: 18000,
		SafeZ:        0.2,
		CutDepth:     0.75,
		PassDepth:    0.25,
		Profile:      "Generic",
	}
}

// DefaultAppConfig returns an AppConfig populated with the package defaults.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Nesting:    DefaultSettings(),
		CNC:        DefaultCNCSettings(),
		Debug:      false,
		ListenAddr: ":8080",
	}
}
