package model

// AlertChannels toggles each delivery channel on or off.
type AlertChannels struct {
	Console  bool `json:"console"`
	File     bool `json:"file"`
	Telegram bool `json:"telegram"`
	Webhook  bool `json:"webhook"`
}

// Thresholds are the numeric alerting knobs.
type Thresholds struct {
	VolumeSpike    float64 `json:"volume_spike"`
	MinArticles    int     `json:"min_articles"`
	SentimentShift float64 `json:"sentiment_shift"`
}

// CompanyPreference is the per-ticker display/alert preference.
type CompanyPreference struct {
	Muted    bool   `json:"muted"`
	Priority string `json:"priority"` // low | normal | high
}

// Preferences is the /api/preferences document.
type Preferences struct {
	Thresholds Thresholds `json:"thresholds"`
}

// AlertRules is the /api/alert-rules document. Severity routing maps a
// severity name to the channels it fans out to.
type AlertRules struct {
	AlertChannels      AlertChannels                `json:"alert_channels"`
	SeverityRouting    map[string][]string          `json:"severity_routing"`
	CompanyPreferences map[string]CompanyPreference `json:"company_preferences"`
}

// Watchlist maps a ticker to the company names matched against articles.
type Watchlist map[string][]string
