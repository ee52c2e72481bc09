package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event represents different types of events flowing through the simulation loop
type Event interface {
	GetTimestamp() time.Time
	GetType() Type
}

// Type represents the type of event
type Type string

const (
	TypeMarket Type = "MARKET"
	TypeSignal Type = "SIGNAL"
	TypeOrder  Type = "ORDER"
	TypeFill   Type = "FILL"
)

// Direction is the direction a strategy wants to take in a symbol
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Side represents the side of an order or fill
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign returns +1 for buys and -1 for sells
func (s Side) Sign() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// Valid reports whether s is one of the known sides
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Valid reports whether d is LONG or SHORT
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Side maps a signal direction onto the order side that expresses it
func (d Direction) Side() Side {
	if d == DirectionShort {
		return SideSell
	}
	return SideBuy
}

// OrderType represents the type of order
type OrderType string

const (
	OrderTypeMarket OrderType = "MKT"
	OrderTypeLimit  OrderType = "LMT"
)

// Market signals that a new aligned bar set is available
type Market struct {
	Timestamp time.Time
}

func (e Market) GetTimestamp() time.Time {
	return e.Timestamp
}

func (e Market) GetType() Type {
	return TypeMarket
}

// Signal is emitted by a strategy when it wants to go long or short a symbol
type Signal struct {
	Symbol    string
	Timestamp time.Time
	Direction Direction
	Strategy  string
}

func (e Signal) GetTimestamp() time.Time {
	return e.Timestamp
}

func (e Signal) GetType() Type {
	return TypeSignal
}

// Order is a sized, risk-checked instruction for the execution handler
type Order struct {
	ID        string
	Symbol    string
	Type      OrderType
	Quantity  float64
	Side      Side
	Price     float64 // limit price, ignored for market orders
	Timestamp time.Time
}

// NewMarketOrder creates a market order with a fresh ID
func NewMarketOrder(symbol string, side Side, quantity float64, ts time.Time) Order {
	return Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Type:      OrderTypeMarket,
		Quantity:  quantity,
		Side:      side,
		Timestamp: ts,
	}
}

// NewLimitOrder creates a limit order with a fresh ID
func NewLimitOrder(symbol string, side Side, quantity, price float64, ts time.Time) Order {
	o := NewMarketOrder(symbol, side, quantity, ts)
	o.Type = OrderTypeLimit
	o.Price = price
	return o
}

func (e Order) GetTimestamp() time.Time {
	return e.Timestamp
}

func (e Order) GetType() Type {
	return TypeOrder
}

func (e Order) String() string {
	return fmt.Sprintf("ORDER %s %s %v %s", e.Symbol, e.Type, e.Quantity, e.Side)
}

// Fill is an executed order as reported by the execution handler.
// FillCost is the per-unit execution price.
type Fill struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	Timestamp  time.Time `json:"timestamp"`
	Symbol     string    `json:"symbol"`
	Exchange   string    `json:"exchange"`
	Quantity   float64   `json:"quantity"`
	Side       Side      `json:"side"`
	FillCost   float64   `json:"fill_cost"`
	Commission float64   `json:"commission"`
}

func (e Fill) GetTimestamp() time.Time {
	return e.Timestamp
}

func (e Fill) GetType() Type {
	return TypeFill
}

// Notional returns the traded value excluding commission
func (e Fill) Notional() float64 {
	return e.FillCost * e.Quantity
}
