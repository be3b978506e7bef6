/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package pictures

import (
	"encoding/json"
	"testing"
)

func playedSession(t *testing.T, d Dataset) Session {
	t.Helper()

	s := mustApply(t, NewSession(d), Start())
	s = mustApply(t, s, OpenCard(1))
	s = mustApply(t, s, SubmitCorrect(1))
	s = mustApply(t, s, OpenCard(2))
	return mustApply(t, s, SubmitWrong(2))
}

func TestResumeMatchingFingerprint(t *testing.T) {
	d := catDog()
	played := playedSession(t, d)

	data, err := EncodeRecord(d, played)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, outcome := Resume(data, d)
	if outcome != OutcomeResumed {
		t.Fatalf("outcome = %v, want resumed", outcome)
	}
	if got.BlueScore != 10 || got.RedScore != -5 || got.ActiveTeam != TeamBlue {
		t.Fatalf("resumed scores %d/%d active %q", got.BlueScore, got.RedScore, got.ActiveTeam)
	}
	if got.OpenCardID == nil || *got.OpenCardID != 2 {
		t.Fatalf("open card not restored")
	}
	if c, _ := got.Card(2); len(c.FailedBy) != 1 || c.FailedBy[0] != TeamRed {
		t.Fatalf("failedBy = %v", c.FailedBy)
	}
}

func TestResumeMismatchStartsFresh(t *testing.T) {
	old := catDog()
	played := playedSession(t, old)

	data, err := EncodeRecord(old, played)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Same card count, different answers.
	current := NewDataset([]string{"cow.png", "cat.png"})
	got, outcome := Resume(data, current)
	if outcome != OutcomeMismatch {
		t.Fatalf("outcome = %v, want mismatch", outcome)
	}
	if got.BlueScore != 0 || got.RedScore != 0 || got.IsStarted {
		t.Fatalf("mismatched record leaked into the fresh session: %+v", got)
	}
	for i, c := range got.Cards {
		if c.Answer != current.Entries[i].Answer || c.IsSolved || len(c.FailedBy) != 0 {
			t.Fatalf("card %d = %+v", i, c)
		}
	}
}

func TestResumeLegacyRecords(t *testing.T) {
	d := catDog()
	played := playedSession(t, d)

	wrapped, err := json.Marshal(map[string]any{"session": played})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	bare, err := json.Marshal(played)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	for name, data := range map[string][]byte{"wrapped": wrapped, "bare": bare} {
		t.Run(name, func(t *testing.T) {
			got, outcome := Resume(data, d)
			if outcome != OutcomeLegacy {
				t.Fatalf("outcome = %v, want legacy", outcome)
			}
			if got.BlueScore != 10 || got.RedScore != -5 {
				t.Fatalf("scores = %d/%d", got.BlueScore, got.RedScore)
			}
		})
	}

	three := NewDataset([]string{"cat.png", "dog.png", "emu.png"})
	if _, outcome := Resume(wrapped, three); outcome != OutcomeMismatch {
		t.Fatalf("legacy record with wrong card count: outcome = %v, want mismatch", outcome)
	}
}

func TestResumeMalformed(t *testing.T) {
	d := catDog()

	tests := []struct {
		name string
		data string
		want Outcome
	}{
		{name: "empty", data: "", want: OutcomeFresh},
		{name: "garbage", data: "{not json", want: OutcomeMalformed},
		{name: "array", data: "[1,2,3]", want: OutcomeMalformed},
		{name: "no session", data: `{"fingerprint":"abc"}`, want: OutcomeMalformed},
		{name: "session wrong type", data: `{"session":[]}`, want: OutcomeMalformed},
		{name: "bad card field", data: `{"session":{"cards":[{"id":"one"}]}}`, want: OutcomeMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, outcome := Resume([]byte(tt.data), d)
			if outcome != tt.want {
				t.Fatalf("outcome = %v, want %v", outcome, tt.want)
			}
			if len(got.Cards) != 2 || got.IsStarted {
				t.Fatalf("expected fresh session, got %+v", got)
			}
		})
	}
}

func TestResumeNormalizesCards(t *testing.T) {
	d := catDog()
	data := []byte(`{"fingerprint":"` + d.Fingerprint + `","session":{"activeTeam":"green","cards":[` +
		`{"id":1,"isSolved":false,"solvedBy":"blue","answer":"cat","imageRef":"cat.png"},` +
		`{"id":2,"isSolved":true,"solvedBy":"red","failedBy":["blue"],"answer":"dog","imageRef":"dog.png"}` +
		`],"openCardId":2}}`)

	got, outcome := Resume(data, d)
	if outcome != OutcomeResumed {
		t.Fatalf("outcome = %v, want resumed", outcome)
	}
	checkInvariants(t, got)
	if got.ActiveTeam != TeamBlue {
		t.Fatalf("activeTeam = %q, want blue", got.ActiveTeam)
	}
	if got.Cards[0].FailedBy == nil {
		t.Fatalf("failedBy should be an empty sequence")
	}
	if got.OpenCardID != nil {
		t.Fatalf("solved card left open")
	}
}
