package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type MessageStatus string

const (
	MessageStatusPending    MessageStatus = "PENDING"
	MessageStatusProcessing MessageStatus = "PROCESSING"
	MessageStatusSent       MessageStatus = "SENT"
	MessageStatusCompleted  MessageStatus = "COMPLETED"
	MessageStatusFailed     MessageStatus = "FAILED"
	MessageStatusPaused     MessageStatus = "PAUSED"
	MessageStatusCancelled  MessageStatus = "CANCELLED"
)

type ScheduleType string

const (
	ScheduleTypeOneTime      ScheduleType = "ONE_TIME"
	ScheduleTypeRecurring    ScheduleType = "RECURRING"
	ScheduleTypeTriggerBased ScheduleType = "TRIGGER_BASED"
)

type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "daily"
	RecurrenceWeekly  RecurrencePattern = "weekly"
	RecurrenceMonthly RecurrencePattern = "monthly"
)

// RecurrenceSpec describes how a recurring schedule advances. Occurrences is
// the number of deliveries already made for the series; the dispatcher
// increments it on every successful send.
type RecurrenceSpec struct {
	Pattern        RecurrencePattern `json:"pattern"`
	Interval       int               `json:"interval"`
	EndDate        *time.Time        `json:"end_date,omitempty"`
	MaxOccurrences *int              `json:"max_occurrences,omitempty"`
	DaysOfWeek     []time.Weekday    `json:"days_of_week,omitempty"`
	DayOfMonth     *int              `json:"day_of_month,omitempty"`
	Occurrences    int               `json:"occurrences"`
}

func (s RecurrenceSpec) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *RecurrenceSpec) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported recurrence spec type %T", src)
	}
}

// TriggerSpec describes the event that arms a TRIGGER_BASED message. The
// trigger evaluator lives outside the dispatch engine; once it fires it moves
// the message to PENDING with scheduled_for set, after which the message is
// processed like a one-time send.
type TriggerSpec struct {
	Event    string  `json:"event"`
	Keyword  *string `json:"keyword,omitempty"`
	DelaySec int     `json:"delay_sec,omitempty"`
}

func (s TriggerSpec) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *TriggerSpec) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported trigger spec type %T", src)
	}
}

// ScheduledMessage is a single outbound message intent. It is created PENDING
// by the dashboard API and mutated exclusively by the dispatch worker.
type ScheduledMessage struct {
	Base
	OrganizationID uuid.UUID       `json:"organization_id" db:"organization_id"`
	ChannelID      uuid.UUID       `json:"channel_id" db:"channel_id"`
	ContactID      *uuid.UUID      `json:"contact_id,omitempty" db:"contact_id"`
	ConversationID *uuid.UUID      `json:"conversation_id,omitempty" db:"conversation_id"`
	Content        string          `json:"content" db:"content"`
	ContentType    string          `json:"content_type" db:"content_type"`
	Attachments    pq.StringArray  `json:"attachments,omitempty" db:"attachments"`
	ScheduledFor   time.Time       `json:"scheduled_for" db:"scheduled_for"`
	ScheduleType   ScheduleType    `json:"schedule_type" db:"schedule_type"`
	Recurrence     *RecurrenceSpec `json:"recurrence,omitempty" db:"recurrence"`
	Trigger        *TriggerSpec    `json:"trigger,omitempty" db:"trigger_spec"`
	Status         MessageStatus   `json:"status" db:"status"`
	RetryCount     int             `json:"retry_count" db:"retry_count"`
	MaxRetries     int             `json:"max_retries" db:"max_retries"`
	LastRetryAt    *time.Time      `json:"last_retry_at,omitempty" db:"last_retry_at"`
	NextRetryAt    *time.Time      `json:"next_retry_at,omitempty" db:"next_retry_at"`
	SentAt         *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	Error          *string         `json:"error,omitempty" db:"error"`
}

// ScheduledMessageUpdate is a partial update applied atomically by the store.
// Nil fields are left untouched.
type ScheduledMessageUpdate struct {
	Status       *MessageStatus
	ScheduledFor *time.Time
	Recurrence   *RecurrenceSpec
	RetryCount   *int
	LastRetryAt  *time.Time
	NextRetryAt  *time.Time
	SentAt       *time.Time
	Error        *string
}

type ScheduledMessageFilter struct {
	OrganizationID uuid.UUID
	Status         MessageStatus
	ScheduleType   ScheduleType
	Pagination
}
