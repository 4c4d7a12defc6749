// Package events defines the pipeline's event variants and the
// in-process bus that carries them between stage handlers.
//
// Each ingestion stage subscribes to the event produced by the previous
// stage and publishes the next one, so the pipeline's shape lives in
// the subscriptions rather than in a central orchestrator. Supporting
// listeners (auditing, completion notification) subscribe to the same
// events without the stages knowing about them.
package events
