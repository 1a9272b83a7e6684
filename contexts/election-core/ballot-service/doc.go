// Package ballotservice implements ballot collection inside the
// election-core context.
//
// The module owns the rank/clear/submit lifecycle of individual ballots and
// exposes submitted rankings in bulk for the tally. Rankings stay private to
// this module until a poll closes; only the fact of submission is published.
package ballotservice
