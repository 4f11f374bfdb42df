package engine

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

type Hand string

const (
	HandRock     Hand = "Rock"
	HandPaper    Hand = "Paper"
	HandScissors Hand = "Scissors"
)

var Hands = []Hand{HandRock, HandPaper, HandScissors}

func (h Hand) Valid() bool {
	switch h {
	case HandRock, HandPaper, HandScissors:
		return true
	default:
		return false
	}
}

func (h *Hand) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !Hand(s).Valid() {
		return fmt.Errorf("unknown hand %q", s)
	}
	*h = Hand(s)
	return nil
}

// Beats reports whether h defeats other.
func (h Hand) Beats(other Hand) bool {
	switch h {
	case HandRock:
		return other == HandScissors
	case HandScissors:
		return other == HandPaper
	case HandPaper:
		return other == HandRock
	}
	return false
}

type Outcome string

const (
	OutcomeWin  Outcome = "Win"
	OutcomeLose Outcome = "Lose"
	OutcomeTie  Outcome = "Tie"
)

// Resolve scores a participant's hand against the server hand.
func Resolve(player, server Hand) Outcome {
	switch {
	case player == server:
		return OutcomeTie
	case player.Beats(server):
		return OutcomeWin
	default:
		return OutcomeLose
	}
}

type Dealer interface {
	Deal() Hand
}

type DealerFunc func() Hand

func (f DealerFunc) Deal() Hand { return f() }

// RandomDealer draws each hand independently and uniformly.
var RandomDealer Dealer = DealerFunc(func() Hand {
	return Hands[rand.IntN(len(Hands))]
})

// FixedDealer always deals h. Used by tests.
func FixedDealer(h Hand) Dealer {
	return DealerFunc(func() Hand { return h })
}
