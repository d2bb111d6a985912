// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"sort"

	"github.com/danielhkuo/quickly-rank/models"
)

// candidate tracks one nomination through the elimination rounds
type candidate struct {
	id    string
	text  string
	order int // insertion position, 0 = earliest
	score int // vote count in the round the candidate was decided
	round int // round the candidate was decided in
	won   bool
}

// Compute runs instant-runoff elimination over the ballots and returns
// every nomination ranked, winner first.
//
// Ballot entries that do not name a current nomination are skipped, and
// each ballot is truncated to votesPerVoter entries when that is positive.
func Compute(nominations map[string]models.Nomination, rankings map[string][]string, votesPerVoter int) []models.Result {
	if len(nominations) == 0 {
		return []models.Result{}
	}

	candidates := orderedCandidates(nominations)
	byID := make(map[string]*candidate, len(candidates))
	active := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		byID[c.id] = c
		active[c.id] = true
	}

	ballots := effectiveBallots(rankings, votesPerVoter)

	for round := 1; ; round++ {
		counts := make(map[string]int, len(active))
		cast := 0
		for _, ballot := range ballots {
			for _, id := range ballot {
				if active[id] {
					counts[id]++
					cast++
					break
				}
			}
		}

		remaining := activeInOrder(candidates, active)

		// Every survivor records its count for this round so that the
		// final-round losers carry their last tally.
		for _, c := range remaining {
			c.score = counts[c.id]
			c.round = round
		}

		if len(remaining) == 1 {
			remaining[0].won = true
			break
		}

		if leader := majority(remaining, cast); leader != nil {
			leader.won = true
			break
		}

		loser := lowest(remaining)
		delete(active, loser.id)
	}

	return rank(candidates)
}

// orderedCandidates sorts nominations by creation time, then ID, which is
// the insertion order used for every tie-break.
func orderedCandidates(nominations map[string]models.Nomination) []*candidate {
	candidates := make([]*candidate, 0, len(nominations))
	for id, n := range nominations {
		candidates = append(candidates, &candidate{id: id, text: n.Text})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := nominations[candidates[i].id], nominations[candidates[j].id]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return candidates[i].id < candidates[j].id
	})

	for i, c := range candidates {
		c.order = i
	}
	return candidates
}

// effectiveBallots applies the vote cap. Iteration order over the map does
// not matter since only per-round totals are used.
func effectiveBallots(rankings map[string][]string, votesPerVoter int) [][]string {
	ballots := make([][]string, 0, len(rankings))
	for _, ranking := range rankings {
		if votesPerVoter > 0 && len(ranking) > votesPerVoter {
			ranking = ranking[:votesPerVoter]
		}
		if len(ranking) > 0 {
			ballots = append(ballots, ranking)
		}
	}
	return ballots
}

func activeInOrder(candidates []*candidate, active map[string]bool) []*candidate {
	var out []*candidate
	for _, c := range candidates {
		if active[c.id] {
			out = append(out, c)
		}
	}
	return out
}

// majority returns the candidate holding strictly more than half of the
// non-exhausted ballots, or nil.
func majority(remaining []*candidate, cast int) *candidate {
	if cast == 0 {
		return nil
	}
	for _, c := range remaining {
		if c.score*2 > cast {
			return c
		}
	}
	return nil
}

// lowest picks the candidate to eliminate: fewest votes, earliest
// nomination among ties. remaining is already in insertion order.
func lowest(remaining []*candidate) *candidate {
	loser := remaining[0]
	for _, c := range remaining[1:] {
		if c.score < loser.score {
			loser = c
		}
	}
	return loser
}

// rank orders the output: winner, then by recorded score, then by how long
// the candidate survived, then insertion order.
func rank(candidates []*candidate) []models.Result {
	sorted := make([]*candidate, len(candidates))
	copy(sorted, candidates)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.won != b.won {
			return a.won
		}
		if a.score != b.score {
			return a.score > b.score
		}
		if a.round != b.round {
			return a.round > b.round
		}
		return a.order < b.order
	})

	results := make([]models.Result, len(sorted))
	for i, c := range sorted {
		results[i] = models.Result{
			NominationID:   c.id,
			NominationText: c.text,
			Score:          c.score,
		}
	}
	return results
}
