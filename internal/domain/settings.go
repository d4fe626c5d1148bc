package domain

// HomeAssistantSettings holds the connection details for the Home Assistant
// odometer integration. Token is write-only through the API.
type HomeAssistantSettings struct {
	BaseURL        string
	Token          string
	OdometerEntity string
	ForceDomain    string
	ForceService   string
	ForceData      map[string]any
}

// Configured reports whether enough is known to read the odometer.
func (s HomeAssistantSettings) Configured() bool {
	return s.BaseURL != "" && s.Token != "" && s.OdometerEntity != ""
}

// HomeAssistantUpdate is a write to the Home Assistant settings. A nil Token
// keeps the stored token. Any empty string removes the saved value so the
// server default applies again.
type HomeAssistantUpdate struct {
	BaseURL        string
	Token          *string
	OdometerEntity string
	ForceDomain    string
	ForceService   string
	ForceData      map[string]any
}
