package models

import "time"

// Collector is an external collection agent (e.g. a mobile-money operator)
// authorized to report payments through the API. EncryptedSecret is the
// AES-GCM encrypted HMAC secret used to verify the collector's bearer
// tokens; the plain secret never leaves the verification path.
type Collector struct {
	ID              string
	Code            string
	Name            string
	EncryptedSecret string
	Active          bool
	CreatedAt       time.Time
}
