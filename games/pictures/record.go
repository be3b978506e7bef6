/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package pictures

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Record is the persisted form of a session.
type Record struct {
	Fingerprint string  `json:"fingerprint,omitempty"`
	Session     Session `json:"session"`
}

// Outcome describes how a persisted record was treated on load.
type Outcome int

const (
	OutcomeFresh Outcome = iota
	OutcomeResumed
	OutcomeLegacy
	OutcomeMismatch
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResumed:
		return "resumed"
	case OutcomeLegacy:
		return "resumed legacy record"
	case OutcomeMismatch:
		return "dataset changed, started fresh"
	case OutcomeMalformed:
		return "unreadable record, started fresh"
	default:
		return "started fresh"
	}
}

// EncodeRecord serializes s together with the dataset fingerprint.
func EncodeRecord(d Dataset, s Session) ([]byte, error) {
	data, err := json.Marshal(Record{
		Fingerprint: d.Fingerprint,
		Session:     s,
	})
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// Resume picks the session to play for dataset d given a persisted record.
// A nil or empty record yields a fresh session.
//
// A record carrying a fingerprint is only resumed when the fingerprint
// matches d. Records written before fingerprinting are resumed when their
// card count matches d. Everything else starts fresh; records are never
// merged with the dataset.
func Resume(data []byte, d Dataset) (Session, Outcome) {
	if len(data) == 0 {
		return NewSession(d), OutcomeFresh
	}
	if !gjson.ValidBytes(data) {
		return NewSession(d), OutcomeMalformed
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return NewSession(d), OutcomeMalformed
	}

	raw := doc.Get("session")
	if !raw.Exists() && doc.Get("cards").Exists() {
		// Bare session objects predate the record envelope.
		raw = doc
	}
	if !raw.IsObject() {
		return NewSession(d), OutcomeMalformed
	}

	var s Session
	if err := json.Unmarshal([]byte(raw.Raw), &s); err != nil {
		return NewSession(d), OutcomeMalformed
	}

	fp := doc.Get("fingerprint")
	if fp.Exists() && fp.String() != "" {
		if fp.String() != d.Fingerprint {
			return NewSession(d), OutcomeMismatch
		}
		return s.normalize(), OutcomeResumed
	}

	if len(s.Cards) != len(d.Entries) {
		return NewSession(d), OutcomeMismatch
	}

	return s.normalize(), OutcomeLegacy
}
