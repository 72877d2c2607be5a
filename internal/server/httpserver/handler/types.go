package handler

import "time"

// Response is the standard response envelope.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Status is the process state reported by /status.
type Status struct {
	Role              string `json:"role"`
	Keys              int    `json:"keys"`
	ConnectedReplicas int    `json:"connected_replicas"`
	ReplID            string `json:"master_replid"`
	ReplicationOffset int64  `json:"master_repl_offset"`

	// Link is the replica link state; empty on a master.
	Link string `json:"link,omitempty"`
}

// Ready reports whether the process can serve consistent reads. A master
// is always ready; a replica is ready while its link is streaming.
func (s Status) Ready() bool {
	return s.Link == "" || s.Link == "streaming"
}

// StatusFunc returns the current Status.
type StatusFunc func() Status
