// Package messaging publishes and consumes domain events over a pluggable
// broker (Kafka, NATS, NSQ or Google Pub/Sub).
//
// Every driver carries the same Message shape: an ID used by consumers for
// de-duplication, an optional partition key, string headers and a body.
// Delivery is at-least-once wherever the broker allows it. A handler error
// asks NSQ and Pub/Sub for redelivery. Kafka commits the offset regardless
// and core NATS has no redelivery, so both only log the failure.
package messaging
