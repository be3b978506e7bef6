/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package pictures

import (
	"errors"
	"testing"
)

func catDog() Dataset {
	return NewDataset([]string{"dog.png", "cat.png"})
}

func mustApply(t *testing.T, s Session, cmd Command) Session {
	t.Helper()

	next, err := cmd(s)
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	checkInvariants(t, next)
	return next
}

func checkInvariants(t *testing.T, s Session) {
	t.Helper()

	for _, c := range s.Cards {
		if !c.IsSolved && c.SolvedBy != "" {
			t.Fatalf("card %d unsolved but solvedBy=%q", c.ID, c.SolvedBy)
		}
	}
}

func TestNewSessionCanonical(t *testing.T) {
	s := NewSession(catDog())

	if s.IsStarted || s.IsFinished {
		t.Fatalf("new session started=%v finished=%v", s.IsStarted, s.IsFinished)
	}
	if s.ActiveTeam != TeamBlue {
		t.Fatalf("activeTeam = %q, want blue", s.ActiveTeam)
	}
	if s.BlueScore != 0 || s.RedScore != 0 {
		t.Fatalf("scores = %d/%d, want 0/0", s.BlueScore, s.RedScore)
	}
	if s.OpenCardID != nil {
		t.Fatalf("openCardId = %d, want none", *s.OpenCardID)
	}
	if len(s.Cards) != 2 {
		t.Fatalf("cards = %d, want 2", len(s.Cards))
	}
	if s.Cards[0].ID != 1 || s.Cards[0].Answer != "cat" || s.Cards[1].ID != 2 || s.Cards[1].Answer != "dog" {
		t.Fatalf("unexpected cards: %+v", s.Cards)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	s := mustApply(t, NewSession(catDog()), Start())
	s = mustApply(t, s, Start())

	if !s.IsStarted {
		t.Fatalf("expected started")
	}
}

func TestSubmitCorrect(t *testing.T) {
	before := mustApply(t, NewSession(catDog()), OpenCard(1))
	after := mustApply(t, before, SubmitCorrect(1))

	card, _ := after.Card(1)
	if !card.IsSolved || card.SolvedBy != TeamBlue {
		t.Fatalf("card = %+v, want solved by blue", card)
	}
	if after.BlueScore != before.BlueScore+CorrectPoints || after.RedScore != before.RedScore {
		t.Fatalf("scores = %d/%d", after.BlueScore, after.RedScore)
	}
	if after.ActiveTeam != TeamRed {
		t.Fatalf("activeTeam = %q, want red", after.ActiveTeam)
	}
	if after.OpenCardID != nil {
		t.Fatalf("card still open")
	}

	solved := 0
	for i := range after.Cards {
		if after.Cards[i].IsSolved != before.Cards[i].IsSolved {
			solved++
		}
	}
	if solved != 1 {
		t.Fatalf("%d cards changed state, want 1", solved)
	}

	if c, _ := before.Card(1); c.IsSolved {
		t.Fatalf("command mutated its input")
	}
}

func TestSubmitWrong(t *testing.T) {
	before := mustApply(t, NewSession(catDog()), OpenCard(2))
	after := mustApply(t, before, SubmitWrong(2))

	card, _ := after.Card(2)
	if card.IsSolved {
		t.Fatalf("card solved by a wrong guess")
	}
	if len(card.FailedBy) != 1 || card.FailedBy[0] != TeamBlue {
		t.Fatalf("failedBy = %v, want [blue]", card.FailedBy)
	}
	if after.BlueScore != -WrongPenalty {
		t.Fatalf("blueScore = %d, want %d", after.BlueScore, -WrongPenalty)
	}
	if after.ActiveTeam != TeamRed {
		t.Fatalf("activeTeam = %q, want red", after.ActiveTeam)
	}
	if after.OpenCardID == nil || *after.OpenCardID != 2 {
		t.Fatalf("card was closed by a wrong guess")
	}
	if orig, _ := before.Card(2); len(orig.FailedBy) != 0 {
		t.Fatalf("command mutated its input")
	}
}

func TestOpenCloseDoNotRotate(t *testing.T) {
	s := mustApply(t, NewSession(catDog()), OpenCard(1))
	s = mustApply(t, s, CloseCard())

	if s.ActiveTeam != TeamBlue {
		t.Fatalf("activeTeam = %q, want blue", s.ActiveTeam)
	}
	if s.OpenCardID != nil {
		t.Fatalf("card still open")
	}
}

func TestInvalidCommandsAreIgnored(t *testing.T) {
	solved := mustApply(t, NewSession(catDog()), SubmitCorrect(1))
	exhausted := mustApply(t, NewSession(catDog()), SubmitWrong(2))
	exhausted = mustApply(t, exhausted, SubmitWrong(2))

	tests := []struct {
		name string
		s    Session
		cmd  Command
		want error
	}{
		{name: "open unknown", s: solved, cmd: OpenCard(9), want: ErrUnknownCard},
		{name: "open solved", s: solved, cmd: OpenCard(1), want: ErrCardSolved},
		{name: "correct on solved", s: solved, cmd: SubmitCorrect(1), want: ErrCardSolved},
		{name: "wrong on solved", s: solved, cmd: SubmitWrong(1), want: ErrCardSolved},
		{name: "correct on unknown", s: solved, cmd: SubmitCorrect(0), want: ErrUnknownCard},
		{name: "correct on exhausted", s: exhausted, cmd: SubmitCorrect(2), want: ErrCardExhausted},
		{name: "wrong on exhausted", s: exhausted, cmd: SubmitWrong(2), want: ErrCardExhausted},
		{name: "reveal fresh card", s: exhausted, cmd: RevealAndClose(1), want: ErrCardNotExhausted},
		{name: "reveal solved", s: solved, cmd: RevealAndClose(1), want: ErrCardSolved},
		{name: "reveal unknown", s: solved, cmd: RevealAndClose(3), want: ErrUnknownCard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd(tt.s)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if got.BlueScore != tt.s.BlueScore || got.RedScore != tt.s.RedScore || got.ActiveTeam != tt.s.ActiveTeam {
				t.Fatalf("ignored command changed the session")
			}
		})
	}
}

func TestExhaustedCardCanBeReopened(t *testing.T) {
	s := mustApply(t, NewSession(catDog()), SubmitWrong(1))
	s = mustApply(t, s, SubmitWrong(1))
	s = mustApply(t, s, CloseCard())
	s = mustApply(t, s, OpenCard(1))

	if s.OpenCardID == nil || *s.OpenCardID != 1 {
		t.Fatalf("exhausted card did not open")
	}
}

func TestTwoCardScenario(t *testing.T) {
	s := mustApply(t, NewSession(catDog()), Start())
	if s.ActiveTeam != TeamBlue {
		t.Fatalf("activeTeam = %q, want blue", s.ActiveTeam)
	}

	s = mustApply(t, s, OpenCard(1))
	if !MatchAnswer("cat", s.Cards[0].Answer) {
		t.Fatalf("cat should match card 1")
	}
	s = mustApply(t, s, SubmitCorrect(1))
	if c, _ := s.Card(1); c.SolvedBy != TeamBlue || s.BlueScore != 10 || s.ActiveTeam != TeamRed {
		t.Fatalf("after cat: card=%+v blue=%d active=%q", c, s.BlueScore, s.ActiveTeam)
	}

	s = mustApply(t, s, OpenCard(2))
	if MatchAnswer("wrong", s.Cards[1].Answer) {
		t.Fatalf("wrong should not match card 2")
	}
	s = mustApply(t, s, SubmitWrong(2))
	if c, _ := s.Card(2); len(c.FailedBy) != 1 || c.FailedBy[0] != TeamRed || s.RedScore != -5 || s.ActiveTeam != TeamBlue {
		t.Fatalf("after wrong: card=%+v red=%d active=%q", c, s.RedScore, s.ActiveTeam)
	}

	s = mustApply(t, s, OpenCard(2))
	s = mustApply(t, s, SubmitCorrect(2))
	if c, _ := s.Card(2); c.SolvedBy != TeamBlue || s.BlueScore != 20 || s.ActiveTeam != TeamRed {
		t.Fatalf("after dog: card=%+v blue=%d active=%q", c, s.BlueScore, s.ActiveTeam)
	}

	if !s.Complete() {
		t.Fatalf("expected all cards solved")
	}
	s = mustApply(t, s, Finish())
	if !s.IsFinished {
		t.Fatalf("expected finished")
	}
	if s.Winner() != TeamBlue {
		t.Fatalf("winner = %q, want blue (%d vs %d)", s.Winner(), s.BlueScore, s.RedScore)
	}
}

func TestSingleCardExhaustion(t *testing.T) {
	s := mustApply(t, NewSession(NewDataset([]string{"owl.jpg"})), Start())
	s = mustApply(t, s, OpenCard(1))
	s = mustApply(t, s, SubmitWrong(1))
	s = mustApply(t, s, SubmitWrong(1))

	card, _ := s.Card(1)
	if !card.Exhausted() {
		t.Fatalf("card not exhausted after two failures")
	}
	if len(card.FailedBy) != 2 || card.FailedBy[0] != TeamBlue || card.FailedBy[1] != TeamRed {
		t.Fatalf("failedBy = %v, want [blue red]", card.FailedBy)
	}

	if _, err := s.SubmitCorrect(1); !errors.Is(err, ErrCardExhausted) {
		t.Fatalf("correct guess accepted on exhausted card: %v", err)
	}

	blue, red := s.BlueScore, s.RedScore
	s = mustApply(t, s, RevealAndClose(1))

	card, _ = s.Card(1)
	if !card.IsSolved || card.SolvedBy != TeamNone {
		t.Fatalf("card = %+v, want solved by none", card)
	}
	if s.BlueScore != blue || s.RedScore != red {
		t.Fatalf("reveal changed scores")
	}
	if s.OpenCardID != nil {
		t.Fatalf("reveal left card open")
	}
	if !s.Complete() {
		t.Fatalf("expected complete")
	}
}

func TestSameTeamCanExhaustCard(t *testing.T) {
	s := NewSession(catDog())
	s.Cards[0].FailedBy = []Team{TeamBlue}
	s = mustApply(t, s, SubmitWrong(1))

	if c, _ := s.Card(1); !c.Exhausted() || c.FailedBy[0] != c.FailedBy[1] {
		t.Fatalf("failedBy = %v, want two blue attempts", c.FailedBy)
	}
}

func TestEmptySessionIsComplete(t *testing.T) {
	s := NewSession(NewDataset(nil))
	if !s.Complete() {
		t.Fatalf("empty session should be complete")
	}
	if s.Winner() != "" {
		t.Fatalf("winner = %q, want tie", s.Winner())
	}
}

func TestWinner(t *testing.T) {
	tests := []struct {
		blue, red int
		want      Team
	}{
		{blue: 10, red: -5, want: TeamBlue},
		{blue: -10, red: -5, want: TeamRed},
		{blue: 5, red: 5, want: ""},
	}

	for _, tt := range tests {
		s := Session{BlueScore: tt.blue, RedScore: tt.red}
		if got := s.Winner(); got != tt.want {
			t.Fatalf("Winner(%d, %d) = %q, want %q", tt.blue, tt.red, got, tt.want)
		}
	}
}
