// Package ledger records confirmed trades. The SQLite implementation serves
// standalone sessions; a brokerage deployment talks to its own trade service
// through the same method set.
package ledger

import (
	"errors"
	"time"

	"github.com/rustyeddy/tradedesk/market"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

var (
	ErrNotFound      = errors.New("ledger: trade not found")
	ErrAlreadyClosed = errors.New("ledger: trade already closed")
)

// Trade is a confirmed position.
type Trade struct {
	ID         string          `json:"id"`
	ClientID   string          `json:"client_id"`
	BrokerID   string          `json:"broker_id,omitempty"`
	Symbol     string          `json:"symbol"`
	Side       market.Side     `json:"side"`
	Volume     float64         `json:"volume"`
	Lot        float64         `json:"lot"`
	EntryPrice float64         `json:"entry_price"`
	ClosePrice float64         `json:"close_price,omitempty"`
	TakeProfit *float64        `json:"take_profit,omitempty"`
	StopLoss   *float64        `json:"stop_loss,omitempty"`
	Category   market.Category `json:"category"`
	Demo       bool            `json:"demo"`
	Status     Status          `json:"status"`
	OpenedAt   time.Time       `json:"opened_at"`
	ClosedAt   time.Time       `json:"closed_at,omitzero"`
}

func (t Trade) Closed() bool { return t.Status == StatusClosed }
