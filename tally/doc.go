// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally computes ranked-choice results by instant-runoff elimination.

	results := tally.Compute(poll.Nominations, poll.Rankings, poll.VotesPerVoter)

Compute is pure: no I/O, and the same input always produces the same
output regardless of map iteration order.

# Rounds

Each round, every ballot counts for its highest-ranked nomination that is
still active. References to removed nominations are skipped. Ballots with
no active nomination left are exhausted and do not count toward the
majority threshold.

A nomination holding strictly more than half of the counted ballots wins.
Otherwise the nomination with the fewest votes is eliminated, the earliest
nomination losing ties, and the next round starts. The last remaining
nomination wins by default.

# Output

Every nomination appears once, with the vote count it held in the round it
was decided:

  - the winner first
  - then descending score
  - then nominations that survived longer
  - then insertion order (earliest first)

Zero nominations produce an empty slice.
*/
package tally
