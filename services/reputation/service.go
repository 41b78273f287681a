package reputation

import (
	"fmt"
	"strings"

	"github.com/customeros/dmarcwatch/interfaces"
)

// Static prefix table covering the providers that show up in aggregate
// reports. Anything outside it is an unknown provider; a handful of
// ranges with a history of abuse are flagged suspicious.
var knownProviders = []struct {
	prefix       string
	organization string
}{
	{"209.85.", "Google LLC (Gmail)"},
	{"64.233.", "Google LLC (Gmail)"},
	{"40.107.", "Microsoft Corporation (Office 365)"},
	{"40.92.", "Microsoft Corporation (Office 365)"},
	{"54.240.", "Amazon.com Inc. (SES)"},
}

var suspiciousRanges = []string{
	"50.63.",
	"185.",
	"195.",
	"91.",
	"103.",
}

type ipReputationService struct{}

func NewIPReputationService() interfaces.IPReputationService {
	return &ipReputationService{}
}

func (s *ipReputationService) Classify(ip string) interfaces.IPReputation {
	for _, provider := range knownProviders {
		if strings.HasPrefix(ip, provider.prefix) {
			return interfaces.IPReputation{Organization: provider.organization}
		}
	}
	for _, prefix := range suspiciousRanges {
		if strings.HasPrefix(ip, prefix) {
			return interfaces.IPReputation{
				Organization: fmt.Sprintf("Unknown Provider (%sx.x range)", rangeLabel(prefix)),
				IsSuspicious: true,
			}
		}
	}
	return interfaces.IPReputation{Organization: "Unknown Provider"}
}

// rangeLabel pads a matched prefix out to two octets so the label reads
// as a /16, e.g. "185." becomes "185.x." and "50.63." stays as is.
func rangeLabel(prefix string) string {
	if strings.Count(prefix, ".") >= 2 {
		return prefix
	}
	return prefix + "x."
}
