package model

import "time"

// Todo is a shared task on the relay organising board. Only the creator or
// an admin may delete one; anyone signed in may complete or assign it.
type Todo struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	CreatedBy      string    `json:"createdBy"`
	CreatedByName  string    `json:"createdByName"`
	AssignedTo     string    `json:"assignedTo,omitempty"`
	AssignedToName string    `json:"assignedToName,omitempty"`
	IsCompleted    bool      `json:"isCompleted"`
	Timestamp      time.Time `json:"timestamp"`
}
