package aggregate

// Standing classifies a computed percentage against the required minimum.
type Standing string

const (
	StandingAbove     Standing = "Above Required"
	StandingBehind    Standing = "Behind"
	StandingNoRecords Standing = "No Attendance Records"
)

// Classify applies the eligibility threshold. The boundary is inclusive: a
// percentage exactly at the requirement meets it.
func Classify(percentage, required int) Standing {
	if percentage >= required {
		return StandingAbove
	}
	return StandingBehind
}
