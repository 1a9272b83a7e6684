// Package render builds the chat message texts the notifier posts. Option
// IDs are translated to labels here; anything without a label falls back to
// the raw ID so a stale event still renders.
package render

import (
	"fmt"
	"strings"
)

// PollPrompt announces a new poll in its channel.
func PollPrompt(title string, description string, createdBy string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗳️ %s\n", title)
	if strings.TrimSpace(description) != "" {
		b.WriteString(description)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Created by @%s", createdBy)
	return b.String()
}

// Reminder nudges a channel about an open poll.
func Reminder() string {
	return "Don't forget to vote!"
}

// Cancellation announces that an election was abandoned.
func Cancellation(actorID string) string {
	return fmt.Sprintf("<@%s> cancelled the election", actorID)
}

// SubmittedAck thanks a voter publicly without revealing their rankings.
func SubmittedAck(voterID string) string {
	return fmt.Sprintf("<@%s> voted! Thank you for doing your civic duty 🫡", voterID)
}

// FinalResult announces the winning option.
func FinalResult(title string, winnerLabel string) string {
	return fmt.Sprintf("*%s · final result:*\n🏆 %s 🏆", title, winnerLabel)
}

// CurrentLeader reports the interim leader of a still-open poll.
func CurrentLeader(title string, leaderLabel string) string {
	return fmt.Sprintf("*%s* · current leader:\n%s", title, leaderLabel)
}

// AnonymizedResults lists every ballot in its published (shuffled) order.
// Voter numbers are positional, not identities.
func AnonymizedResults(labels map[string]string, ballots [][]string) string {
	lines := make([]string, 0, len(ballots)+1)
	lines = append(lines, "Anonymized results:")
	for i, ballot := range ballots {
		lines = append(lines, fmt.Sprintf("Voter %d: %s", i+1, joinLabels(labels, ballot)))
	}
	return strings.Join(lines, "\n")
}

// RoundBreakdown renders the per-round elimination trace, one block per
// round with one line per surviving ballot.
func RoundBreakdown(labels map[string]string, rounds [][][]string) string {
	lines := make([]string, 0)
	for i, round := range rounds {
		ballots := make([]string, 0, len(round))
		for _, ballot := range round {
			ballots = append(ballots, joinLabels(labels, ballot))
		}
		lines = append(lines, fmt.Sprintf("After round %d: %s", i+1, strings.Join(ballots, "\n")))
	}
	return strings.Join(lines, "\n")
}

func joinLabels(labels map[string]string, optionIDs []string) string {
	named := make([]string, 0, len(optionIDs))
	for _, optionID := range optionIDs {
		if label, ok := labels[optionID]; ok {
			named = append(named, label)
		} else {
			named = append(named, optionID)
		}
	}
	return strings.Join(named, ", ")
}
