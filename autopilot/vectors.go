package autopilot

// ExtraDOF is fixed on for every call this bridge makes.
const ExtraDOF = true

// StateVectorLength is the number of f64 parameters in a state vector.
func StateVectorLength(wavelengths, planes int) int {
	extra := 1
	if ExtraDOF {
		extra = 4
	}
	return wavelengths * planes * 2 * (1 + extra)
}

// ObservationVectorLength is the number of observations, and of entries in
// the matching missing mask.
func ObservationVectorLength(wavelengths, planes int) int {
	extra := 0
	if ExtraDOF {
		extra = 3
	}
	return wavelengths * planes * (2*2 + 2*extra)
}

// SyncPlaneLength is the length of a per-plane sync selector.
func SyncPlaneLength(wavelengths, planes int) int {
	return wavelengths * planes
}
