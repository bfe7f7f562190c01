// Package service contains the business logic layer.
//
// Handlers parse HTTP and translate errors; services validate, enforce the
// club's rules, and orchestrate repositories; repositories read and write
// the store. Services depend only on the repository interfaces and on the
// EventPublisher below, so tests inject in-memory mocks for both.
package service

import "github.com/sakif/runclub/internal/realtime"

// EventPublisher is what services notify after a successful write. The
// realtime hub implements it; tests substitute a recorder.
type EventPublisher interface {
	Publish(event realtime.Event)
}

// Topics the services publish on. One topic per page, matching what the
// corresponding page subscribes to.
const (
	TopicOrders   = "orders"
	TopicPresence = "presence"
	TopicPhotos   = "photos"
	TopicStages   = "stages"
	TopicTodos    = "todos"
	TopicRaces    = "races"
)

// nopPublisher satisfies EventPublisher when a caller has no hub (tests
// that don't care about events).
type nopPublisher struct{}

func (nopPublisher) Publish(realtime.Event) {}

// NopPublisher returns a publisher that discards every event.
func NopPublisher() EventPublisher { return nopPublisher{} }
