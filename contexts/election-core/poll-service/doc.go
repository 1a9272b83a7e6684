// Package pollservice implements poll lifecycle inside the election-core
// context.
//
// The module owns poll orchestration (open/close/cancel/remind), the
// instant-runoff tally that decides a closed poll, standings reads, and
// poll lifecycle event production through an outbox-backed relay. Business
// rules live in the domain and application layers; infrastructure sits
// behind ports and adapters.
package pollservice
