// Package notifierservice implements result presentation inside the
// election-core context.
//
// The module consumes poll and ballot lifecycle events and posts the
// corresponding channel messages: poll prompts, vote acknowledgements,
// reminders, cancellations, and the final anonymized results with the
// per-round elimination trace.
package notifierservice
