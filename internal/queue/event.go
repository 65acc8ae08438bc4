// Package queue defines the auth domain events exchanged over the message
// broker and the background consumer that records them.
package queue

// Queue names. Both queues are declared durable so events survive broker
// restarts.
const (
	UserRegisteredQueue = "user.registered"
	UserLoginQueue      = "user.login"
)

// UserRegisteredEvent is published when a registration succeeds. It carries
// enough for downstream consumers to log or notify without querying the
// credential store.
type UserRegisteredEvent struct {
	UserID       uint64 `json:"user_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	BusNumber    string `json:"bus_number,omitempty"`
	RegisteredAt string `json:"registered_at"`
}

// UserLoggedInEvent is published on every successful authentication. Method
// is "password" or "google".
type UserLoggedInEvent struct {
	UserID   uint64 `json:"user_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Method   string `json:"method"`
	LoggedAt string `json:"logged_at"`
}
