package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
)

// MaterializeJob asks a worker to run recurring materialization for one
// user as of Date.
type MaterializeJob struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Date      core.Date `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMaterializeJob creates a job with a fresh message id.
func NewMaterializeJob(userID string, date core.Date) *MaterializeJob {
	return &MaterializeJob{
		MessageID: uuid.NewString(),
		UserID:    userID,
		Date:      date,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MaterializeJob) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MaterializeJobFromJSON decodes and checks a job body.
func MaterializeJobFromJSON(data []byte) (*MaterializeJob, error) {
	var msg MaterializeJob
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("job has no user_id")
	}
	if msg.Date.IsZero() {
		return nil, errors.New("job has no date")
	}
	return &msg, nil
}
