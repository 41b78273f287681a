package enum

type AuthResult string

const (
	AuthResultPass    AuthResult = "pass"
	AuthResultFail    AuthResult = "fail"
	AuthResultUnknown AuthResult = "unknown"
)

func (t AuthResult) String() string {
	return string(t)
}

// DecodeAuthResult maps raw report values onto the known result set.
// Anything outside pass/fail is reported as unknown, matching the
// missing-field defaults applied at parse time.
func DecodeAuthResult(s string) AuthResult {
	switch s {
	case "pass":
		return AuthResultPass
	case "fail":
		return AuthResultFail
	default:
		return AuthResultUnknown
	}
}
