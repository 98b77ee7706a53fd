package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Header keys shared by consumed and produced messages
const (
	HeaderTraceParent   = "traceparent"
	HeaderEventType     = "event_type"
	HeaderTenantID      = "tenant_id"
	HeaderSchemaVersion = "schema_version"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Trace context (extracted from Kafka headers)
	TraceParent string
}

// ParseExtraction decodes the value as an extraction batch. Tenant and lead fall back to headers.
func (m *IncomingMessage) ParseExtraction() (*models.ExtractionMessage, error) {
	var msg models.ExtractionMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return nil, fmt.Errorf("invalid extraction message: %w", err)
	}
	if msg.TenantID == "" {
		msg.TenantID = m.Headers[HeaderTenantID]
	}
	if msg.LeadID == "" {
		msg.LeadID = m.Headers["lead_id"]
	}
	return &msg, nil
}
