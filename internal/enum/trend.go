package enum

type Trend string

const (
	TrendImproved Trend = "improved"
	TrendDeclined Trend = "declined"
	TrendStable   Trend = "stable"
)

func (t Trend) String() string {
	return string(t)
}
