package core

import (
	"encoding/json"
	"fmt"
)

// MessageType is the kind tag of a server envelope.
type MessageType string

const (
	TypeProgressUpdate    MessageType = "PROGRESS_UPDATE"
	TypeStatusChange      MessageType = "STATUS_CHANGE"
	TypeError             MessageType = "ERROR"
	TypeTaskStarted       MessageType = "TASK_STARTED"
	TypeTaskCompleted     MessageType = "TASK_COMPLETED"
	TypeQuestionStarted   MessageType = "QUESTION_STARTED"
	TypeQuestionCompleted MessageType = "QUESTION_COMPLETED"
	TypeQuestionFailed    MessageType = "QUESTION_FAILED"
)

// Envelope is the {type, payload} shape the server wraps notifications in.
// The payload schema is left to the application.
type Envelope struct {
	Type    MessageType    `json:"type"`
	Payload map[string]any `json:"payload"`
}

// DecodeEnvelope reads an Envelope from a raw body.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("topicmux: decode envelope: %w", err)
	}
	return env, nil
}
