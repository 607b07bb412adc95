package amqp

import (
	"encoding/json"
	"time"
)

// SessionConvertedMessage announces that a bill session was converted into
// transactions. It carries identifiers only; the worker fetches the session
// and its transactions from the store.
type SessionConvertedMessage struct {
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	TxCount   int       `json:"txCount"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSessionConvertedMessage(userID, sessionID string, txCount int) *SessionConvertedMessage {
	return &SessionConvertedMessage{
		UserID:    userID,
		SessionID: sessionID,
		TxCount:   txCount,
		Timestamp: time.Now(),
	}
}

func (m *SessionConvertedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SessionConvertedMessageFromJSON(data []byte) (*SessionConvertedMessage, error) {
	var msg SessionConvertedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
