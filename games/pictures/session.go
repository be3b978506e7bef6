/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package pictures implements the two-team picture guessing game.
//
// A grid of numbered cards hides one image each. Teams take turns opening a
// card and guessing what it shows:
//   - A correct guess solves the card for the guessing team (+10).
//   - A wrong guess costs the guessing team 5 points and passes the turn,
//     leaving the card open for the other team.
//   - After two failed attempts the card is exhausted and can only be
//     revealed, which gives nobody credit.
//
// Every command is a pure transition on a Session value. The Manager owns
// the live Session for one game, persists it through a Store, and guards
// deferred commits with a per-session epoch.
package pictures

import (
	"errors"
)

// Team identifies who solved or failed a card.
// The zero value means unset.
type Team string

const (
	TeamBlue Team = "blue"
	TeamRed  Team = "red"
	TeamNone Team = "none"
)

const (
	CorrectPoints = 10
	WrongPenalty  = 5

	// ExhaustAfter is the number of failed attempts after which a card can
	// only be revealed.
	ExhaustAfter = 2
)

var (
	ErrUnknownCard      = errors.New("unknown card")
	ErrCardSolved       = errors.New("card already solved")
	ErrCardExhausted    = errors.New("card has no guesses left")
	ErrCardNotExhausted = errors.New("card still accepts guesses")
)

// Opponent returns the other playing team.
func (t Team) Opponent() Team {
	if t == TeamBlue {
		return TeamRed
	}
	return TeamBlue
}

// Card is one guessable image.
type Card struct {
	ID       int    `json:"id"`
	IsSolved bool   `json:"isSolved"`
	SolvedBy Team   `json:"solvedBy,omitempty"`
	FailedBy []Team `json:"failedBy"`
	Answer   string `json:"answer"`
	ImageRef string `json:"imageRef"`
}

// Exhausted reports whether the card has run out of guesses.
func (c Card) Exhausted() bool {
	return len(c.FailedBy) >= ExhaustAfter
}

func (c Card) clone() Card {
	failed := make([]Team, len(c.FailedBy))
	copy(failed, c.FailedBy)
	c.FailedBy = failed
	return c
}

// Session is the full state of one game.
type Session struct {
	IsStarted  bool   `json:"isStarted"`
	IsFinished bool   `json:"isFinished"`
	ActiveTeam Team   `json:"activeTeam"`
	BlueScore  int    `json:"blueScore"`
	RedScore   int    `json:"redScore"`
	Cards      []Card `json:"cards"`
	OpenCardID *int   `json:"openCardId,omitempty"`
}

// NewSession returns the canonical initial session for a dataset.
func NewSession(d Dataset) Session {
	cards := make([]Card, 0, len(d.Entries))
	for _, e := range d.Entries {
		cards = append(cards, Card{
			ID:       e.ID,
			FailedBy: []Team{},
			Answer:   e.Answer,
			ImageRef: e.Asset,
		})
	}

	return Session{
		ActiveTeam: TeamBlue,
		Cards:      cards,
	}
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	cards := make([]Card, len(s.Cards))
	for i, c := range s.Cards {
		cards[i] = c.clone()
	}
	s.Cards = cards

	if s.OpenCardID != nil {
		id := *s.OpenCardID
		s.OpenCardID = &id
	}

	return s
}

// Card returns the card with the given id.
func (s Session) Card(id int) (Card, bool) {
	i := s.index(id)
	if i < 0 {
		return Card{}, false
	}
	return s.Cards[i], true
}

func (s Session) index(id int) int {
	for i := range s.Cards {
		if s.Cards[i].ID == id {
			return i
		}
	}
	return -1
}

// Complete reports whether every card has been solved or revealed.
// A session without cards is complete.
func (s Session) Complete() bool {
	for _, c := range s.Cards {
		if !c.IsSolved {
			return false
		}
	}
	return true
}

// Winner compares the scores. It returns the empty Team on a tie.
func (s Session) Winner() Team {
	switch {
	case s.BlueScore > s.RedScore:
		return TeamBlue
	case s.RedScore > s.BlueScore:
		return TeamRed
	default:
		return ""
	}
}

func (s *Session) award(t Team, points int) {
	if t == TeamRed {
		s.RedScore += points
		return
	}
	s.BlueScore += points
}

// guessable clones s and returns the index of a card that may still be
// guessed at.
func (s Session) guessable(id int) (Session, int, error) {
	i := s.index(id)
	switch {
	case i < 0:
		return s, -1, ErrUnknownCard
	case s.Cards[i].IsSolved:
		return s, -1, ErrCardSolved
	case s.Cards[i].Exhausted():
		return s, -1, ErrCardExhausted
	}
	return s.Clone(), i, nil
}

// Start marks the game as started.
func (s Session) Start() (Session, error) {
	next := s.Clone()
	next.IsStarted = true
	return next, nil
}

// Finish marks the game as finished.
func (s Session) Finish() (Session, error) {
	next := s.Clone()
	next.IsFinished = true
	return next, nil
}

// OpenCard displays a card. Exhausted cards may be opened so they can be
// revealed.
func (s Session) OpenCard(id int) (Session, error) {
	i := s.index(id)
	if i < 0 {
		return s, ErrUnknownCard
	}
	if s.Cards[i].IsSolved {
		return s, ErrCardSolved
	}

	next := s.Clone()
	next.OpenCardID = &id
	return next, nil
}

// CloseCard hides the open card without touching cards or scores.
func (s Session) CloseCard() (Session, error) {
	next := s.Clone()
	next.OpenCardID = nil
	return next, nil
}

// SubmitCorrect credits the active team with the card and passes the turn.
func (s Session) SubmitCorrect(id int) (Session, error) {
	next, i, err := s.guessable(id)
	if err != nil {
		return s, err
	}

	next.Cards[i].IsSolved = true
	next.Cards[i].SolvedBy = next.ActiveTeam
	next.award(next.ActiveTeam, CorrectPoints)
	next.ActiveTeam = next.ActiveTeam.Opponent()
	next.OpenCardID = nil

	return next, nil
}

// SubmitWrong records a failed attempt by the active team and passes the
// turn. The card stays open.
func (s Session) SubmitWrong(id int) (Session, error) {
	next, i, err := s.guessable(id)
	if err != nil {
		return s, err
	}

	next.Cards[i].FailedBy = append(next.Cards[i].FailedBy, next.ActiveTeam)
	next.award(next.ActiveTeam, -WrongPenalty)
	next.ActiveTeam = next.ActiveTeam.Opponent()

	return next, nil
}

// RevealAndClose shows the answer of an exhausted card to both teams and
// closes it. Nobody scores.
func (s Session) RevealAndClose(id int) (Session, error) {
	i := s.index(id)
	switch {
	case i < 0:
		return s, ErrUnknownCard
	case s.Cards[i].IsSolved:
		return s, ErrCardSolved
	case !s.Cards[i].Exhausted():
		return s, ErrCardNotExhausted
	}

	next := s.Clone()
	next.Cards[i].IsSolved = true
	next.Cards[i].SolvedBy = TeamNone
	next.OpenCardID = nil

	return next, nil
}

// normalize repairs invariants on a session read from storage.
func (s Session) normalize() Session {
	next := s.Clone()
	if next.ActiveTeam != TeamBlue && next.ActiveTeam != TeamRed {
		next.ActiveTeam = TeamBlue
	}
	for i := range next.Cards {
		if !next.Cards[i].IsSolved {
			next.Cards[i].SolvedBy = ""
		}
		if next.Cards[i].FailedBy == nil {
			next.Cards[i].FailedBy = []Team{}
		}
	}
	if next.OpenCardID != nil {
		if c, ok := next.Card(*next.OpenCardID); !ok || c.IsSolved {
			next.OpenCardID = nil
		}
	}
	return next
}
