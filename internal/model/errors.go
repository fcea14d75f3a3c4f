// Package model implements the three base fraud models and their
// ensemble: a supervised classifier, a reconstruction-error anomaly
// detector, and a clustering detector.
package model

import "errors"

var (
	// ErrNotTrained is returned when prediction is requested from a
	// model that has not been trained.
	ErrNotTrained = errors.New("model not trained")

	// ErrClustersNotIdentified is returned when cluster fraud
	// probabilities are requested before fraud clusters have been
	// identified from labeled data.
	ErrClustersNotIdentified = errors.New("fraud clusters not identified")

	// ErrNoPositiveLabels is returned when a validation set contains
	// no positive labels, which makes weight search meaningless.
	ErrNoPositiveLabels = errors.New("validation set has no positive labels")

	// ErrUnknownModel is returned when a prediction names a model the
	// ensemble does not contain.
	ErrUnknownModel = errors.New("unknown model")
)
