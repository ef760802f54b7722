// Package wire defines the JSON shapes exchanged with the broker's HTTP
// surface (§3, §6) and the base64/JSON codec boundary. Per spec.md §1 these
// codecs are external collaborators; this package is a thin, fixed adapter
// over the standard library's encoding/json and encoding/base64 — no
// third-party codec is warranted here (see DESIGN.md).
package wire

import (
	"encoding/base64"
	"encoding/json"
)

// RoutingData identifies the destination/source topic and optional
// partitioning key of a record.
type RoutingData struct {
	Topic       string `json:"topic"`
	ShardingKey string `json:"shardingKey"`
}

// Message carries the record's headers and base64-encoded payload.
type Message struct {
	Headers map[string]string `json:"headers"`
	Payload string            `json:"payload"`
}

// ConsumedRecord is one element of a GET .../records response.
type ConsumedRecord struct {
	RoutingData RoutingData `json:"routingData"`
	Partition   int32       `json:"partition"`
	Offset      int64       `json:"offset"`
	Message     Message     `json:"message"`
}

// ConsumeResponse is the full GET .../records response body.
type ConsumeResponse struct {
	Records []ConsumedRecord `json:"records"`
}

// ProducedRecord is one element of a POST .../produce request body.
type ProducedRecord struct {
	RoutingData RoutingData `json:"routingData"`
	Message     Message     `json:"message"`
}

// ProduceRequest is the full POST .../produce request body.
type ProduceRequest struct {
	Records []ProducedRecord `json:"records"`
}

// CreateConsumerRequest is the POST .../consumers request body.
type CreateConsumerRequest struct {
	ConsumerGroup string            `json:"consumerGroup"`
	Configs       map[string]string `json:"configs"`
}

// CreateConsumerResponse is the POST .../consumers response body.
type CreateConsumerResponse struct {
	ConsumerInstanceID string `json:"consumerInstanceId"`
}

// SubscribeRequest is the POST .../subscription request body.
type SubscribeRequest struct {
	Topics []string `json:"topics"`
}

// OffsetEntry is one pending commit-log entry.
type OffsetEntry struct {
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Offset    int64  `json:"offset"`
}

// CommitRequest is the POST .../offsets request body.
type CommitRequest struct {
	Offsets []OffsetEntry `json:"offsets"`
}

// EncodePayload base64-encodes a JSON-marshaled value for use as a
// Message.Payload.
func EncodePayload(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodePayload reverses EncodePayload, unmarshaling into a generic value.
func DecodePayload(payload string) (any, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
