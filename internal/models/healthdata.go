// Package models defines the health-data variants the store can hold, the
// type-erased envelope they are persisted through, and the document and
// conversation records.
package models

import "time"

// TypeTag classifies a health-record variant. Stored in plaintext alongside
// the sealed payload so records can be filtered without decrypting.
type TypeTag string

const (
	TagPersonalInfo TypeTag = "personal_info"
	TagBloodTest    TypeTag = "blood_test"
	TagMedication   TypeTag = "medication"
	TagAllergy      TypeTag = "allergy"
	TagVaccination  TypeTag = "vaccination"
	TagLabReport    TypeTag = "lab_report"
)

// knownTags is the closed registry of tags the store accepts.
var knownTags = map[TypeTag]struct{}{
	TagPersonalInfo: {},
	TagBloodTest:    {},
	TagMedication:   {},
	TagAllergy:      {},
	TagVaccination:  {},
	TagLabReport:    {},
}

// Valid reports whether t is a registered tag.
func (t TypeTag) Valid() bool {
	_, ok := knownTags[t]
	return ok
}

// Typed is implemented by every concrete health-data struct.
type Typed interface {
	Tag() TypeTag
}

// PersonalHealthInfo holds the user's baseline profile. Conceptually a
// singleton per user; the store does not enforce that, the caller does.
type PersonalHealthInfo struct {
	Name          string   `json:"name"`
	DateOfBirth   string   `json:"date_of_birth,omitempty"`
	Sex           string   `json:"sex,omitempty"`
	BloodType     string   `json:"blood_type,omitempty"`
	HeightCm      float64  `json:"height_cm,omitempty"`
	WeightKg      float64  `json:"weight_kg,omitempty"`
	Conditions    []string `json:"conditions,omitempty"`
	EmergencyNote string   `json:"emergency_note,omitempty"`
}

func (PersonalHealthInfo) Tag() TypeTag { return TagPersonalInfo }

// TestItem is a single analyte within a blood test panel.
type TestItem struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit,omitempty"`
	RefLow    float64 `json:"ref_low,omitempty"`
	RefHigh   float64 `json:"ref_high,omitempty"`
	OutOfBand bool    `json:"out_of_band,omitempty"`
}

// BloodTestResult is one lab panel taken on a given date.
type BloodTestResult struct {
	TakenAt time.Time  `json:"taken_at"`
	Lab     string     `json:"lab,omitempty"`
	Items   []TestItem `json:"items"`
	Notes   string     `json:"notes,omitempty"`
}

func (BloodTestResult) Tag() TypeTag { return TagBloodTest }

// Medication is a current or past prescription.
type Medication struct {
	Name      string     `json:"name"`
	Dosage    string     `json:"dosage,omitempty"`
	Frequency string     `json:"frequency,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

func (Medication) Tag() TypeTag { return TagMedication }

// Allergy records a known allergy and its severity.
type Allergy struct {
	Allergen string `json:"allergen"`
	Reaction string `json:"reaction,omitempty"`
	Severity string `json:"severity,omitempty"`
}

func (Allergy) Tag() TypeTag { return TagAllergy }

// Vaccination records a single immunization event.
type Vaccination struct {
	Vaccine    string    `json:"vaccine"`
	GivenAt    time.Time `json:"given_at"`
	Dose       string    `json:"dose,omitempty"`
	BatchNo    string    `json:"batch_no,omitempty"`
	Clinic     string    `json:"clinic,omitempty"`
	NextDoseAt string    `json:"next_dose_at,omitempty"`
}

func (Vaccination) Tag() TypeTag { return TagVaccination }

// LabReport is free-form findings extracted from an imported report.
type LabReport struct {
	Title    string    `json:"title"`
	IssuedAt time.Time `json:"issued_at"`
	Provider string    `json:"provider,omitempty"`
	Summary  string    `json:"summary,omitempty"`
	Findings []string  `json:"findings,omitempty"`
}

func (LabReport) Tag() TypeTag { return TagLabReport }
