package rollup

import "errors"

var (
	// ErrEmptyEntityID is returned when the aggregate entity id is empty.
	ErrEmptyEntityID = errors.New("rollup: empty entity id")
	// ErrInvalidGranularity is returned when granularity is unsupported.
	ErrInvalidGranularity = errors.New("rollup: invalid granularity")
	// ErrInvalidVariant is returned when the period variant is unsupported.
	ErrInvalidVariant = errors.New("rollup: invalid variant")
	// ErrInvalidPeriodStart is returned when the period start is zero.
	ErrInvalidPeriodStart = errors.New("rollup: invalid period start")
	// ErrNegativeFactValue is returned when a fact has negative values.
	ErrNegativeFactValue = errors.New("rollup: negative fact value")
	// ErrNilClassifier is returned when the service is built without a classifier.
	ErrNilClassifier = errors.New("rollup: nil classifier")
)
