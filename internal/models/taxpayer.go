package models

import "time"

// Taxpayer is registered per commune; Code is the unique human-facing
// identifier external collectors reference.
type Taxpayer struct {
	ID        string
	Code      string
	Name      string
	Phone     string
	Address   string
	CommuneID string
	CreatedAt time.Time
}
