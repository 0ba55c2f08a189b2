package models

import "time"

// RefreshTokenRecord is the durable server-side record of an issued refresh
// token. Only the sha256 hash of the signed token is stored. Records are
// never hard-deleted: revoked rows stay behind for reuse forensics, with
// ReplacedByTokenID forming the rotation chain.
type RefreshTokenRecord struct {
	ID                string
	OwnerIdentity     string
	TokenHash         string
	IssuedAt          time.Time
	ExpiresAt         time.Time
	Revoked           bool
	ReplacedByTokenID *string
	CreatedByIP       string
	UserAgent         string
	CreatedAt         time.Time
}

// Superseded reports whether the record was revoked by rotation rather than
// by an explicit revocation. Presenting a superseded token is the reuse
// signal the orchestrator escalates on.
func (r *RefreshTokenRecord) Superseded() bool {
	return r.Revoked && r.ReplacedByTokenID != nil
}

func (r *RefreshTokenRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
