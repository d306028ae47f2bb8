package domain

import (
	"strings"
	"time"
)

// StarredRepo is a single item observed on the starred feed. Immutable once
// produced by the poller.
type StarredRepo struct {
	FullName    string
	StarredAt   time.Time
	CloneURL    string
	Description string
	Language    string
}

// URL returns the canonical repository identity used as the ledger key.
func (r StarredRepo) URL() string {
	return "https://github.com/" + r.FullName
}

// DirName derives the deterministic clone directory slug (owner_repo,
// lowercase), so repeated acquisition attempts always target the same path.
func (r StarredRepo) DirName() string {
	return strings.ToLower(strings.ReplaceAll(r.FullName, "/", "_"))
}

// Outcome markers written to the ledger when no verified-findings count is
// available.
const (
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeCloneFailed = "clone_failed"
)

// LedgerRecord tracks the lifecycle of one starred repository. Keyed by URL;
// at most one record exists per repository and records are never deleted.
type LedgerRecord struct {
	URL        string
	LocalPath  string
	CloneTime  string
	ScanTime   string
	VerifyTime string
	Outcome    string
}

// LedgerUpdate names the fields an upsert should touch. Nil fields are left
// exactly as previously recorded.
type LedgerUpdate struct {
	LocalPath  *string
	CloneTime  *string
	ScanTime   *string
	VerifyTime *string
	Outcome    *string
}

// Apply merges the update into rec, overwriting only the provided fields.
func (u LedgerUpdate) Apply(rec *LedgerRecord) {
	if u.LocalPath != nil {
		rec.LocalPath = *u.LocalPath
	}
	if u.CloneTime != nil {
		rec.CloneTime = *u.CloneTime
	}
	if u.ScanTime != nil {
		rec.ScanTime = *u.ScanTime
	}
	if u.VerifyTime != nil {
		rec.VerifyTime = *u.VerifyTime
	}
	if u.Outcome != nil {
		rec.Outcome = *u.Outcome
	}
}

// Str is a shorthand for building LedgerUpdate fields.
func Str(s string) *string {
	return &s
}
