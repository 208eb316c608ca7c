// Package event defines the append-only event envelope shared by the server
// log and the client sync layer, plus the typed payload for every operation.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type names a domain operation. The same name is used for the client's queued
// mutation and for the event the server appends once it commits.
type Type string

const (
	TypeAccountCreated Type = "account.created"
	TypeAccountUpdated Type = "account.updated"
	TypeAccountDeleted Type = "account.deleted"

	TypeActivityCreated Type = "activity.created"
	TypeActivityUpdated Type = "activity.updated"
	TypeActivityDeleted Type = "activity.deleted"

	TypeMovementCreated Type = "movement.created"
	TypeMovementUpdated Type = "movement.updated"
	TypeMovementDeleted Type = "movement.deleted"

	TypeLinkCreated Type = "link.created"
	TypeLinkUpdated Type = "link.updated"
	TypeLinkDeleted Type = "link.deleted"

	TypeProjectCreated Type = "project.created"
	TypeProjectUpdated Type = "project.updated"
	TypeProjectDeleted Type = "project.deleted"
)

// Event is one immutable row in the event log. CreatedAt is wall-clock unix
// seconds assigned by the server; it doubles as the client catch-up cursor.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt float64         `json:"createdAt"`
	ClientID  string          `json:"clientId"`
	User      string          `json:"user"`
	Workspace string          `json:"workspace,omitempty"`
}

// Time converts the float-seconds timestamp back to a time.Time.
func (e Event) Time() time.Time {
	sec := int64(e.CreatedAt)
	nsec := int64((e.CreatedAt - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

// Seconds converts a time.Time to the float-seconds representation used on the wire.
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Marshal encodes a typed payload into the envelope's raw form.
func Marshal(payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling event payload: %w", err)
	}
	return raw, nil
}

// Decode unmarshals an event's payload into the typed form for its Type.
func Decode[T any](e Event) (T, error) {
	var payload T
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return payload, fmt.Errorf("decoding %s payload: %w", e.Type, err)
	}
	return payload, nil
}

// DecodeRaw unmarshals a bare payload, for callers holding a mutation request
// rather than a full envelope.
func DecodeRaw[T any](typ Type, raw json.RawMessage) (T, error) {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("decoding %s payload: %w", typ, err)
	}
	return payload, nil
}
