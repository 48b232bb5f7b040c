package config

import "strings"

// Profile pairs an encoder speed preset with a constant rate factor. It is
// derived once at run start and immutable for the run's duration.
type Profile struct {
	Name   string
	Preset string
	CRF    int
}

// Quality tier names accepted on the CLI.
const (
	QualityDraft    = "draft"
	QualityBalanced = "balanced"
	QualityQuality  = "quality"
)

// Subtitle burn-in trades a little quality for output size: CRF is bumped
// by one step and capped so the final pass never balloons.
const (
	subtitleCRFStep = 2
	subtitleCRFMax  = 30
)

var profiles = map[string]Profile{
	QualityDraft:    {Name: QualityDraft, Preset: "veryfast", CRF: 28},
	QualityBalanced: {Name: QualityBalanced, Preset: "medium", CRF: 23},
	QualityQuality:  {Name: QualityQuality, Preset: "slow", CRF: 18},
}

// ProfileFor maps a quality tier to its encoding profile. Unknown or empty
// tiers fall back to balanced.
func ProfileFor(tier string) Profile {
	if p, ok := profiles[strings.ToLower(strings.TrimSpace(tier))]; ok {
		return p
	}
	return profiles[QualityBalanced]
}

// SubtitleCRF returns the degraded CRF used for the subtitle burn pass.
func (p Profile) SubtitleCRF() int {
	crf := p.CRF + subtitleCRFStep
	if crf > subtitleCRFMax {
		crf = subtitleCRFMax
	}
	return crf
}
