// model.go this code defines the data model for the application
package datastore

import "time"

// Scan represents a single submitted image together with its inference
// result and moderation metadata. A scan is immutable after creation except
// for the helpfulness signal, the inspection flag and its reason, and the
// confirmed breed linkage held in ConfirmedBreed.
type Scan struct {
	ID          uint   `gorm:"primaryKey"`
	ImageURL    string `gorm:"not null"`
	SubmitterID string `gorm:"index:idx_scans_submitter"` // empty = anonymous submission

	// Location is best-effort enrichment, all three are nil when the
	// resolver failed or was disabled.
	Latitude  *float64
	Longitude *float64
	Accuracy  *float64 // accuracy radius in meters

	Helpful    *bool  // nil = unset, tri-state helpfulness signal
	Flagged    bool   `gorm:"index:idx_scans_flagged"`
	FlagReason string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"index:idx_scans_created_at"`

	Predictions []Prediction `gorm:"foreignKey:ScanID;constraint:OnDelete:CASCADE"`
}

// Prediction is one ranked classifier result linked to a Scan. Rank 1 is the
// headline prediction.
type Prediction struct {
	ID         uint    `gorm:"primaryKey"`
	ScanID     uint    `gorm:"index;not null;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;foreignKey:ScanID;references:ID"`
	Label      string  `gorm:"not null"`
	Confidence float64 // percentage in [0,100]
	Rank       int     `gorm:"not null"`
}

// Breed holds the controlled vocabulary entry moderators classify against.
type Breed struct {
	Name string `gorm:"primaryKey"`

	// Closed enumerations, validated by the breed registry.
	Species      string `gorm:"type:varchar(20)"`
	Status       string `gorm:"type:varchar(20)"`
	Temperament  string `gorm:"type:varchar(20)"`
	Conservation string `gorm:"type:varchar(20)"`

	// Optional numeric ranges, min <= max when both present.
	MilkYieldMin   *float64
	MilkYieldMax   *float64
	MilkYieldUnit  string `gorm:"type:varchar(20)"`
	BodyWeightMin  *float64
	BodyWeightMax  *float64
	BodyWeightUnit string `gorm:"type:varchar(20)"`

	Description string `gorm:"type:text"`
	ImageURL    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BreedOrigin is a directed ancestry edge from a breed to one of its parent
// breeds, with an optional contribution percentage in [0,100].
type BreedOrigin struct {
	ID         uint   `gorm:"primaryKey"`
	BreedName  string `gorm:"index:idx_breed_origins_breed;uniqueIndex:idx_breed_origins_edge;not null"`
	ParentName string `gorm:"uniqueIndex:idx_breed_origins_edge;not null"`
	Percentage *float64
}

// ConfirmedBreed is a moderator-asserted ground-truth breed label for an
// image. ScanID is nil for bulk reference imports that have no originating
// scan. The unique index on ScanID enforces at most one confirmation per
// scan; NULLs do not collide under either dialect.
type ConfirmedBreed struct {
	ID          uint      `gorm:"primaryKey"`
	ScanID      *uint     `gorm:"uniqueIndex:idx_confirmed_breeds_scan"`
	ImageURL    string    `gorm:"not null"`
	BreedName   string    `gorm:"index:idx_confirmed_breeds_breed;not null"`
	ModeratorID string    `gorm:"index:idx_confirmed_breeds_moderator"`
	CreatedAt   time.Time `gorm:"index:idx_confirmed_breeds_created_at"`
}

// Headline returns the top ranked prediction of a scan, if any.
func (s *Scan) Headline() (Prediction, bool) {
	if len(s.Predictions) == 0 {
		return Prediction{}, false
	}
	top := s.Predictions[0]
	for _, p := range s.Predictions[1:] {
		if p.Rank < top.Rank {
			top = p
		}
	}
	return top, true
}

// HasLocation reports whether the scan carries a resolved coordinate.
func (s *Scan) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}
