package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// PreferenceProfile is the traveller profile the caller resolves before
// submitting. The orchestrator never loads it itself.
type PreferenceProfile struct {
	ID            string   `json:"id"`
	Pace          string   `json:"pace"`
	Interests     []string `json:"interests"`
	DietaryNotes  string   `json:"dietary_notes"`
	BudgetCeiling float64  `json:"budget_ceiling"`
}

// TripRequest is the immutable parameter set that defines one generation job.
type TripRequest struct {
	Destination string             `json:"destination"`
	Origin      string             `json:"origin"`
	StartDate   string             `json:"start_date"`
	EndDate     string             `json:"end_date"`
	PartySize   int                `json:"party_size"`
	Locale      string             `json:"locale"`
	Profile     *PreferenceProfile `json:"profile"`
}

const (
	tripDateLayout = "2006-01-02"

	// DefaultPartySize is applied when the request omits the party size.
	DefaultPartySize = 1
	// MaxPartySize caps group bookings.
	MaxPartySize = 12
	// DefaultLocale is applied when no locale preference is available.
	DefaultLocale = "en"
)

var allowedPaces = map[string]struct{}{
	"relaxed":  {},
	"balanced": {},
	"packed":   {},
}

// Normalize applies server defaults and caps. It never rejects; Validate does.
func (r *TripRequest) Normalize(preferredLocale string) {
	if r == nil {
		return
	}
	r.Destination = strings.TrimSpace(r.Destination)
	r.Origin = strings.TrimSpace(r.Origin)
	if r.PartySize <= 0 {
		r.PartySize = DefaultPartySize
	}
	if r.PartySize > MaxPartySize {
		r.PartySize = MaxPartySize
	}
	if r.Locale == "" {
		if preferredLocale != "" {
			r.Locale = preferredLocale
		} else {
			r.Locale = DefaultLocale
		}
	}
	if r.Profile != nil {
		if _, ok := allowedPaces[r.Profile.Pace]; !ok {
			r.Profile.Pace = "balanced"
		}
	}
}

// Validate checks the fields a submission cannot proceed without.
func (r *TripRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: missing request", ErrInvalidRequest)
	}
	if r.Destination == "" {
		return fmt.Errorf("%w: destination is required", ErrInvalidRequest)
	}
	if r.Profile == nil || r.Profile.ID == "" {
		return fmt.Errorf("%w: resolved preference profile is required", ErrInvalidRequest)
	}
	start, err := time.Parse(tripDateLayout, r.StartDate)
	if err != nil {
		return fmt.Errorf("%w: invalid start_date %q", ErrInvalidRequest, r.StartDate)
	}
	end, err := time.Parse(tripDateLayout, r.EndDate)
	if err != nil {
		return fmt.Errorf("%w: invalid end_date %q", ErrInvalidRequest, r.EndDate)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end_date before start_date", ErrInvalidRequest)
	}
	return nil
}

// Nights returns the trip length in nights, never below one.
func (r *TripRequest) Nights() int {
	start, err1 := time.Parse(tripDateLayout, r.StartDate)
	end, err2 := time.Parse(tripDateLayout, r.EndDate)
	if err1 != nil || err2 != nil {
		return 1
	}
	nights := int(end.Sub(start).Hours() / 24)
	if nights < 1 {
		return 1
	}
	return nights
}

// Fingerprint hashes the semantically relevant subset of the request. Two
// requests differing only in cosmetic fields (locale, origin spelling case)
// produce the same fingerprint, and normalizing a request never changes it:
// the same defaults and caps are applied here, so the recovery match cannot
// depend on whether Normalize ran first.
func (r *TripRequest) Fingerprint() string {
	party := r.PartySize
	if party <= 0 {
		party = DefaultPartySize
	}
	if party > MaxPartySize {
		party = MaxPartySize
	}
	profileID := ""
	var ceiling float64
	if r.Profile != nil {
		profileID = r.Profile.ID
		ceiling = r.Profile.BudgetCeiling
	}
	key := fmt.Sprintf("%s|%s|%s|%s|%d|%.2f",
		strings.ToLower(strings.TrimSpace(r.Destination)), r.StartDate, r.EndDate, profileID, party, ceiling)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
