package detection

type CategoryRequest struct {
	Category string `json:"category"`
}

// SettingsRequest carries the runtime-tunable scan knobs. Nil fields are
// left unchanged.
type SettingsRequest struct {
	ScanIntervalMins *int `json:"scan_interval_mins"`
	InactiveDays     *int `json:"inactive_days"`
}
