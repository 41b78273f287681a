package interfaces

// IPReputation is a static classification of a sending source.
type IPReputation struct {
	Organization string `json:"organization"`
	IsSuspicious bool   `json:"isSuspicious"`
}

// IPReputationService maps a source IP onto a provider label and a
// suspicion flag. Implementations may be a static prefix table or a live
// intelligence feed.
type IPReputationService interface {
	Classify(ip string) IPReputation
}
