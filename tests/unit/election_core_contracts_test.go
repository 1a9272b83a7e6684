package unit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPollServiceOpenAPIContractIncludesImplementedRoutes(t *testing.T) {
	root, err := findRepoRoot()
	if err != nil {
		t.Fatalf("resolve repo root: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "contracts", "api", "v1", "poll-service.openapi.json"))
	if err != nil {
		t.Fatalf("read poll-service openapi: %v", err)
	}

	var doc struct {
		Paths map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode poll-service openapi: %v", err)
	}

	expected := map[string][]string{
		"/api/polls/v1/polls":                     {"post", "get"},
		"/api/polls/v1/polls/{poll_id}":           {"get"},
		"/api/polls/v1/polls/{poll_id}/close":     {"post"},
		"/api/polls/v1/polls/{poll_id}/cancel":    {"post"},
		"/api/polls/v1/polls/{poll_id}/remind":    {"post"},
		"/api/polls/v1/polls/{poll_id}/standings": {"get"},
	}

	for path, methods := range expected {
		ops, ok := doc.Paths[path]
		if !ok {
			t.Fatalf("missing path in openapi contract: %s", path)
		}
		for _, method := range methods {
			if _, ok := ops[method]; !ok {
				t.Fatalf("missing method %s for path %s in openapi contract", method, path)
			}
		}
	}
}

func TestBallotServiceOpenAPIContractIncludesImplementedRoutes(t *testing.T) {
	root, err := findRepoRoot()
	if err != nil {
		t.Fatalf("resolve repo root: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "contracts", "api", "v1", "ballot-service.openapi.json"))
	if err != nil {
		t.Fatalf("read ballot-service openapi: %v", err)
	}

	var doc struct {
		Paths map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode ballot-service openapi: %v", err)
	}

	expected := map[string][]string{
		"/api/ballots/v1/polls/{poll_id}/ballot":        {"get"},
		"/api/ballots/v1/polls/{poll_id}/ballot/rank":   {"post"},
		"/api/ballots/v1/polls/{poll_id}/ballot/clear":  {"post"},
		"/api/ballots/v1/polls/{poll_id}/ballot/submit": {"post"},
	}

	for path, methods := range expected {
		ops, ok := doc.Paths[path]
		if !ok {
			t.Fatalf("missing path in openapi contract: %s", path)
		}
		for _, method := range methods {
			if _, ok := ops[method]; !ok {
				t.Fatalf("missing method %s for path %s in openapi contract", method, path)
			}
		}
	}
}

func TestEventSchemasCoverCanonicalEventSet(t *testing.T) {
	root, err := findRepoRoot()
	if err != nil {
		t.Fatalf("resolve repo root: %v", err)
	}

	eventTypes := []string{
		"poll.opened",
		"poll.closed",
		"poll.cancelled",
		"poll.reminder",
		"ballot.submitted",
	}

	requiredEnvelopeFields := []string{
		"event_id",
		"event_type",
		"occurred_at",
		"source_service",
		"trace_id",
		"schema_version",
		"partition_key_path",
		"partition_key",
		"data",
	}

	for _, eventType := range eventTypes {
		path := filepath.Join(root, "contracts", "events", "v1", eventType+".schema.json")
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read event schema %s: %v", eventType, err)
		}

		var schema map[string]any
		if err := json.Unmarshal(raw, &schema); err != nil {
			t.Fatalf("decode event schema %s: %v", eventType, err)
		}

		if title, _ := schema["title"].(string); title != eventType {
			t.Fatalf("schema %s has wrong title: %q", eventType, title)
		}

		required, _ := schema["required"].([]any)
		for _, key := range requiredEnvelopeFields {
			if !containsAnyString(required, key) {
				t.Fatalf("schema %s missing required envelope key %s", eventType, key)
			}
		}

		properties, _ := schema["properties"].(map[string]any)
		eventTypeProp, _ := properties["event_type"].(map[string]any)
		if eventConst, _ := eventTypeProp["const"].(string); eventConst != eventType {
			t.Fatalf("schema %s has wrong event_type const: %q", eventType, eventConst)
		}

		partitionPathProp, _ := properties["partition_key_path"].(map[string]any)
		if partitionConst, _ := partitionPathProp["const"].(string); partitionConst != "channel_id" {
			t.Fatalf("schema %s has wrong partition_key_path const: %q", eventType, partitionConst)
		}
	}
}

func TestEmittedEventEnvelopeContractConsistency(t *testing.T) {
	h := newElectionHarness()
	poll, byLabel := openLunchPoll(t, h)
	ctx := context.Background()

	castBallot(t, h, poll.PollID, "voter-1", []string{byLabel["Tacos"]})
	castBallot(t, h, poll.PollID, "voter-2", []string{byLabel["Tacos"]})
	if _, err := h.polls.Handler.ClosePollHandler(ctx, poll.PollID, "ana", "idem-close-1"); err != nil {
		t.Fatalf("close poll: %v", err)
	}

	pendingOutbox, err := h.pollStore.ListPendingOutbox(ctx, 100)
	if err != nil {
		t.Fatalf("list pending outbox failed: %v", err)
	}

	expectedTypes := map[string]bool{
		"poll.opened":      false,
		"ballot.submitted": false,
		"poll.closed":      false,
	}
	expectedSources := map[string]string{
		"poll.opened":      "poll-service",
		"poll.closed":      "poll-service",
		"poll.cancelled":   "poll-service",
		"poll.reminder":    "poll-service",
		"ballot.submitted": "ballot-service",
	}

	for _, message := range pendingOutbox {
		var envelope map[string]any
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			t.Fatalf("decode outbox envelope failed: %v", err)
		}
		eventType, _ := envelope["event_type"].(string)
		if _, tracked := expectedTypes[eventType]; tracked {
			expectedTypes[eventType] = true
		}

		if sourceService, _ := envelope["source_service"].(string); sourceService != expectedSources[eventType] {
			t.Fatalf("event %s has invalid source_service %q", eventType, sourceService)
		}
		if traceID, _ := envelope["trace_id"].(string); strings.TrimSpace(traceID) == "" {
			t.Fatalf("event %s missing trace_id", eventType)
		}
		if partitionPath, _ := envelope["partition_key_path"].(string); partitionPath != "channel_id" {
			t.Fatalf("event %s has invalid partition_key_path %q", eventType, partitionPath)
		}
		partitionKey, _ := envelope["partition_key"].(string)
		if strings.TrimSpace(partitionKey) == "" {
			t.Fatalf("event %s missing partition_key", eventType)
		}

		data, _ := envelope["data"].(map[string]any)
		dataChannelID, _ := data["channel_id"].(string)
		if dataChannelID != partitionKey {
			t.Fatalf("event %s partition mismatch: data.channel_id=%q partition_key=%q", eventType, dataChannelID, partitionKey)
		}
	}

	for eventType, seen := range expectedTypes {
		if !seen {
			t.Fatalf("expected emitted event type not found in outbox: %s", eventType)
		}
	}
}
