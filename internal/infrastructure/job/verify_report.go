package job

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

const (
	summaryFile        = "verify_summary.json"
	legacyFindingsFile = "verified_findings.json"
)

type verifySummary struct {
	Results []struct {
		Verified *bool `json:"verified"`
		RC       *int  `json:"rc"`
	} `json:"results"`
}

type legacyFindings struct {
	Findings []json.RawMessage `json:"findings"`
}

// CountVerified reads the analysis job's summary artifact under dir and
// returns the verified-findings count as the ledger outcome string. The
// preferred verify_summary.json counts entries flagged verified, falling
// back to entries with rc==0 when nothing carries the flag; the legacy
// verified_findings.json counts the findings list. Missing or unreadable
// artifacts count as zero rather than an error.
func CountVerified(dir string) string {
	if raw, err := os.ReadFile(filepath.Join(dir, summaryFile)); err == nil {
		var summary verifySummary
		if err := json.Unmarshal(raw, &summary); err == nil {
			verified := 0
			for _, r := range summary.Results {
				if r.Verified != nil && *r.Verified {
					verified++
				}
			}
			if verified == 0 {
				for _, r := range summary.Results {
					if r.RC != nil && *r.RC == 0 {
						verified++
					}
				}
			}
			return strconv.Itoa(verified)
		}
		return "0"
	}

	if raw, err := os.ReadFile(filepath.Join(dir, legacyFindingsFile)); err == nil {
		var findings legacyFindings
		if err := json.Unmarshal(raw, &findings); err == nil {
			return strconv.Itoa(len(findings.Findings))
		}
	}

	return "0"
}
