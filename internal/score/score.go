// Package score derives a resilience confidence rating from which optional
// integrity controls protect a document. The score is ephemeral and never
// persisted; it summarizes the other modules' outputs for a human reader.
package score

import (
	dErrors "sigil/pkg/domain-errors"
)

// GovernanceLevel is the issuer's declared governance maturity. The level
// sets the score baseline; controls add on top of it.
type GovernanceLevel string

const (
	LevelBaseline  GovernanceLevel = "baseline"
	LevelManaged   GovernanceLevel = "managed"
	LevelCertified GovernanceLevel = "certified"
)

// Control is an optional integrity control that may protect a document.
type Control string

const (
	// ControlProvenanceRecord means an append-only provenance record exists.
	ControlProvenanceRecord Control = "provenance_record"

	// ControlRegistryEntry means the document is listed in an external
	// registry.
	ControlRegistryEntry Control = "registry_entry"

	// ControlMetadataEmbed means governance metadata is embedded in the
	// document file itself.
	ControlMetadataEmbed Control = "metadata_embed"

	// ControlLedgerEntry means the envelope hash was mirrored to the
	// side-channel ledger.
	ControlLedgerEntry Control = "ledger_entry"
)

// Band is the human-facing rating derived from the numeric score.
type Band string

const (
	BandMaximum Band = "MAXIMUM"
	BandHigh    Band = "HIGH"
	BandMedium  Band = "MEDIUM"
	BandLow     Band = "LOW"
	BandMinimal Band = "MINIMAL"
)

// Result pairs the numeric score with its band.
type Result struct {
	Score  int  `json:"score"`
	Rating Band `json:"rating"`
}

var levelBase = map[GovernanceLevel]int{
	LevelBaseline:  10,
	LevelManaged:   25,
	LevelCertified: 40,
}

// Control weights. A certified issuer with every control lands exactly at
// 100; a baseline issuer with none stays in MINIMAL.
var controlWeight = map[Control]int{
	ControlProvenanceRecord: 25,
	ControlRegistryEntry:    15,
	ControlMetadataEmbed:    10,
	ControlLedgerEntry:      10,
}

// Compute returns the resilience score for a governance level and the set of
// present controls. Duplicate controls count once. Unknown levels or
// controls are caller faults.
func Compute(level GovernanceLevel, controls []Control) (Result, error) {
	base, ok := levelBase[level]
	if !ok {
		return Result{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown governance level %q", level)
	}

	total := base
	seen := make(map[Control]struct{}, len(controls))
	for _, c := range controls {
		w, ok := controlWeight[c]
		if !ok {
			return Result{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown control %q", c)
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		total += w
	}
	if total > 100 {
		total = 100
	}

	return Result{Score: total, Rating: bandFor(total)}, nil
}

func bandFor(score int) Band {
	switch {
	case score >= 85:
		return BandMaximum
	case score >= 60:
		return BandHigh
	case score >= 40:
		return BandMedium
	case score >= 20:
		return BandLow
	default:
		return BandMinimal
	}
}
