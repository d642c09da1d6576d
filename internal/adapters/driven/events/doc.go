// Package events publishes verified webhook events to the background job
// system. Kafka and asynq are the production transports. LogPublisher
// writes events to the log for development.
package events
