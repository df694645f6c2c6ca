package domain

// Conviction is a coarse band over belief confidence, handed to the reasoning
// collaborator alongside the raw number.
type Conviction string

const (
	ConvictionFirm      Conviction = "firm"
	ConvictionHeld      Conviction = "held"
	ConvictionTentative Conviction = "tentative"
	ConvictionDoubtful  Conviction = "doubtful"
)

func ComputeConviction(confidence float64) Conviction {
	switch {
	case confidence > 0.85:
		return ConvictionFirm
	case confidence > 0.70:
		return ConvictionHeld
	case confidence > 0.40:
		return ConvictionTentative
	default:
		return ConvictionDoubtful
	}
}

// ConvictionReason explains the band for dashboards.
func ConvictionReason(confidence float64) string {
	switch ComputeConviction(confidence) {
	case ConvictionFirm:
		return "confidence above 0.85: states this position without hedging"
	case ConvictionHeld:
		return "confidence above 0.70: holds the position, open to strong counter-evidence"
	case ConvictionTentative:
		return "confidence above 0.40: leans this way, hedges in public statements"
	default:
		return "confidence at or below 0.40: does not assert this position"
	}
}
