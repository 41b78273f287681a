package enum

// AlertCategory identifies which classification check flagged a report.
type AlertCategory string

const (
	AlertLowAuthRate       AlertCategory = "low_auth_rate"
	AlertRateChange        AlertCategory = "auth_rate_change"
	AlertNewSources        AlertCategory = "new_sources"
	AlertNarrativeKeywords AlertCategory = "narrative_keywords"
)

func (t AlertCategory) String() string {
	return string(t)
}
