package queue

import (
	"encoding/json"
	"time"
)

// MessageVersion is the current payload version.
const MessageVersion = 1

// Message asks a worker to analyse one résumé. Only ResumeID is required;
// the worker re-reads everything else from the store.
type Message struct {
	ResumeID   string `json:"resumeId"`
	RequestID  string `json:"requestId,omitempty"`
	Attempt    int    `json:"attempt"`
	EnqueuedAt string `json:"enqueuedAt,omitempty"`
	Version    int    `json:"version"`
}

// NewMessage builds a first-attempt message.
func NewMessage(resumeID, requestID string, now time.Time) Message {
	return Message{
		ResumeID:   resumeID,
		RequestID:  requestID,
		EnqueuedAt: now.UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// Retry returns the message for the next attempt.
func (m Message) Retry(now time.Time) Message {
	m.Attempt++
	m.EnqueuedAt = now.UTC().Format(time.RFC3339)
	if m.Version == 0 {
		m.Version = MessageVersion
	}
	return m
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Attempt < 0 {
		msg.Attempt = 0
	}
	return msg, nil
}
