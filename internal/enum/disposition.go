package enum

type Disposition string

const (
	DispositionNone       Disposition = "none"
	DispositionQuarantine Disposition = "quarantine"
	DispositionReject     Disposition = "reject"
)

func (t Disposition) String() string {
	return string(t)
}

func DecodeDisposition(s string) Disposition {
	switch s {
	case "quarantine":
		return DispositionQuarantine
	case "reject":
		return DispositionReject
	default:
		return DispositionNone
	}
}

// PolicyMode is the published DMARC enforcement mode (p / sp tags).
type PolicyMode string

const (
	PolicyModeNone       PolicyMode = "none"
	PolicyModeQuarantine PolicyMode = "quarantine"
	PolicyModeReject     PolicyMode = "reject"
)

func (t PolicyMode) String() string {
	return string(t)
}

func DecodePolicyMode(s string) PolicyMode {
	switch s {
	case "quarantine":
		return PolicyModeQuarantine
	case "reject":
		return PolicyModeReject
	default:
		return PolicyModeNone
	}
}
