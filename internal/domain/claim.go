package domain

import (
	"time"
)

// Claim represents a healthcare insurance claim submitted for scoring.
type Claim struct {
	// Core identifiers
	ID          string `json:"claimId"`
	PatientID   string `json:"patientId"`
	ProviderID  string `json:"providerId"`
	InsuranceID string `json:"insuranceId,omitempty"`

	// Clinical coding
	DiagnosisCode string `json:"diagnosisCode"`
	ProcedureCode string `json:"procedureCode"`

	// Patient details
	PatientAge    int    `json:"patientAge"`
	PatientGender string `json:"patientGender,omitempty"`

	// Geography
	PatientLocation  string `json:"patientLocation,omitempty"`
	ProviderLocation string `json:"providerLocation,omitempty"`
	HospitalName     string `json:"hospitalName,omitempty"`

	// Financial details
	Amount float64 `json:"amount"`

	// Temporal
	ClaimDate time.Time `json:"claimDate"`
	CreatedAt time.Time `json:"createdAt"`
}

// ClaimRequest is the API payload for a claim to be scored or stored.
type ClaimRequest struct {
	ID               string  `json:"claimId,omitempty"`
	PatientID        string  `json:"patientId"`
	ProviderID       string  `json:"providerId"`
	InsuranceID      string  `json:"insuranceId,omitempty"`
	DiagnosisCode    string  `json:"diagnosisCode"`
	ProcedureCode    string  `json:"procedureCode"`
	PatientAge       int     `json:"patientAge"`
	PatientGender    string  `json:"patientGender,omitempty"`
	PatientLocation  string  `json:"patientLocation,omitempty"`
	ProviderLocation string  `json:"providerLocation,omitempty"`
	HospitalName     string  `json:"hospitalName,omitempty"`
	Amount           float64 `json:"amount"`
	ClaimDate        string  `json:"claimDate,omitempty"` // RFC 3339; defaults to now
}

// ToClaim converts a request to a Claim domain object.
func (r *ClaimRequest) ToClaim() *Claim {
	now := time.Now().UTC()
	claimDate := now
	if r.ClaimDate != "" {
		if t, err := time.Parse(time.RFC3339, r.ClaimDate); err == nil {
			claimDate = t
		}
	}
	return &Claim{
		ID:               r.ID,
		PatientID:        r.PatientID,
		ProviderID:       r.ProviderID,
		InsuranceID:      r.InsuranceID,
		DiagnosisCode:    r.DiagnosisCode,
		ProcedureCode:    r.ProcedureCode,
		PatientAge:       r.PatientAge,
		PatientGender:    r.PatientGender,
		PatientLocation:  r.PatientLocation,
		ProviderLocation: r.ProviderLocation,
		HospitalName:     r.HospitalName,
		Amount:           r.Amount,
		ClaimDate:        claimDate,
		CreatedAt:        now,
	}
}
