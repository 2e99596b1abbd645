package domain

import "fmt"

// Error Codes

const (
	ErrCodeUnsupportedGene             = "UNSUPPORTED_GENE"
	ErrCodeUnsupportedDrug             = "UNSUPPORTED_DRUG"
	ErrCodeIndeterminateDiplotype      = "INDETERMINATE_DIPLOTYPE"
	ErrCodeConflictingEvidence         = "CONFLICTING_EVIDENCE"
	ErrCodePriorOutOfBounds            = "PRIOR_OUT_OF_BOUNDS"
	ErrCodeCalibrationDataInsufficient = "CALIBRATION_DATA_INSUFFICIENT"
	ErrCodeInvalidRequest              = "INVALID_REQUEST"
	ErrCodeStoreUnavailable            = "STORE_UNAVAILABLE"
)

// UnsupportedGeneError is returned when a gene has no allele definitions.
// Resolution paths degrade to an indeterminate result instead of failing,
// so this surfaces only from direct lookups.
type UnsupportedGeneError struct {
	Gene string
}

func (e *UnsupportedGeneError) Error() string {
	return fmt.Sprintf("gene %s is not supported by the loaded guideline set", e.Gene)
}

// UnsupportedDrugError is returned when a drug has no guideline entry.
type UnsupportedDrugError struct {
	Drug string
}

func (e *UnsupportedDrugError) Error() string {
	return fmt.Sprintf("drug %s has no guideline entry", e.Drug)
}

// PriorOutOfBoundsError is returned when a feedback update would push a
// learning prior outside its configured bounds before clamping could be
// applied, or when a stored prior fails validation on load.
type PriorOutOfBoundsError struct {
	Gene      string
	Diplotype string
	Value     float64
	Lower     float64
	Upper     float64
}

func (e *PriorOutOfBoundsError) Error() string {
	return fmt.Sprintf("learning prior %.4f for %s %s outside bounds [%.2f, %.2f]",
		e.Value, e.Gene, e.Diplotype, e.Lower, e.Upper)
}

// CalibrationDataInsufficientError is returned when a calibration bin
// has fewer samples than the configured minimum for drift analysis.
type CalibrationDataInsufficientError struct {
	Bin     string
	Samples int64
	Minimum int64
}

func (e *CalibrationDataInsufficientError) Error() string {
	return fmt.Sprintf("calibration bin %s has %d samples, need %d",
		e.Bin, e.Samples, e.Minimum)
}
