// Package domain contains the core concepts of the message board.
// A Submission is what travels over the wire, a Document is what is
// persisted. Documents are immutable: there is no update or delete,
// the store behaves as an append-only log.
package domain

import "time"

// TimestampLayout is the wall-clock format stamped on every persisted
// document. Microsecond precision keeps insertion order readable.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Submission is the wire unit relayed from the HTTP ingress to the
// relay server. Both fields may be empty; neither is validated.
type Submission struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Document is the persisted unit. The timestamp is assigned by the
// relay server at the moment of persistence and never trusted from
// the client.
type Document struct {
	Timestamp string `bson:"timestamp"`
	Username  string `bson:"username"`
	Message   string `bson:"message"`
}

// Stamp turns a decoded submission into a persistable document,
// assigning the given wall-clock time.
func Stamp(sub Submission, at time.Time) Document {
	return Document{
		Timestamp: at.UTC().Format(TimestampLayout),
		Username:  sub.Username,
		Message:   sub.Message,
	}
}
