// Package model holds the domain types shared across the prospecting pipeline.
package model

import "time"

// Company is the master-data record for a tracked organization, keyed by its
// nine-digit national organization number.
type Company struct {
	Orgnr          string     `json:"orgnr"`
	Name           string     `json:"name"`
	NACE           string     `json:"nace,omitempty"`
	Municipality   string     `json:"municipality,omitempty"`
	Website        string     `json:"website,omitempty"`
	SectorCode     string     `json:"sector_code,omitempty"`
	IsPublicSector bool       `json:"is_public_sector"`
	ExcludedReason string     `json:"excluded_reason,omitempty"`
	Description    string     `json:"description,omitempty"`
	LastFetchAt    *time.Time `json:"last_fetch_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Excluded reports whether the company is soft-excluded from shortlisting.
func (c Company) Excluded() bool {
	return c.IsPublicSector || c.ExcludedReason != ""
}

// NormalizeOrgnr strips everything but digits and returns the result if it is
// a valid nine-digit organization number, else the empty string.
func NormalizeOrgnr(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b = append(b, s[i])
		}
	}
	if len(b) != 9 {
		return ""
	}
	return string(b)
}
