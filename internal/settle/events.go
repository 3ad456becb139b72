package settle

import (
	"time"

	"github.com/hausgames/treasury/internal/token"
)

// EventType represents a settlement event type with type safety
type EventType string

// EventType constants for settlement domain events
const (
	EventTypeRoundResult   EventType = "round_result"
	EventTypeGameStarted   EventType = "game_started"
	EventTypeStakeRaised   EventType = "stake_raised"
	EventTypeStakeDoubled  EventType = "stake_doubled"
	EventTypePlayerDropped EventType = "player_dropped"
	EventTypeGameResolved  EventType = "game_resolved"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// Event represents anything that happens during settlement
type Event interface {
	EventType() EventType
	Timestamp() time.Time
}

// RoundResultEvent is published when a roulette or slots round settles
type RoundResultEvent struct {
	RoundID   string
	Game      string
	Players   int
	Wagered   uint64
	Paid      uint64
	Outcome   string
	timestamp time.Time
}

func (e RoundResultEvent) EventType() EventType { return EventTypeRoundResult }
func (e RoundResultEvent) Timestamp() time.Time { return e.timestamp }

// NewRoundResultEvent creates a new round result event
func NewRoundResultEvent(roundID, game string, players int, wagered, paid uint64, outcome string) RoundResultEvent {
	return RoundResultEvent{
		RoundID:   roundID,
		Game:      game,
		Players:   players,
		Wagered:   wagered,
		Paid:      paid,
		Outcome:   outcome,
		timestamp: time.Now(),
	}
}

// GameStartedEvent is published when a backgammon match opens
type GameStartedEvent struct {
	GameID    int
	PlayerOne token.Address
	PlayerTwo token.Address
	Stake     uint64
	Total     uint64
	timestamp time.Time
}

func (e GameStartedEvent) EventType() EventType { return EventTypeGameStarted }
func (e GameStartedEvent) Timestamp() time.Time { return e.timestamp }

// NewGameStartedEvent creates a new game started event
func NewGameStartedEvent(gameID int, p1, p2 token.Address, stake, total uint64) GameStartedEvent {
	return GameStartedEvent{
		GameID:    gameID,
		PlayerOne: p1,
		PlayerTwo: p2,
		Stake:     stake,
		Total:     total,
		timestamp: time.Now(),
	}
}

// StakeRaisedEvent is published when a player raises the double
type StakeRaisedEvent struct {
	GameID    int
	By        token.Address
	Total     uint64
	timestamp time.Time
}

func (e StakeRaisedEvent) EventType() EventType { return EventTypeStakeRaised }
func (e StakeRaisedEvent) Timestamp() time.Time { return e.timestamp }

// NewStakeRaisedEvent creates a new stake raised event
func NewStakeRaisedEvent(gameID int, by token.Address, total uint64) StakeRaisedEvent {
	return StakeRaisedEvent{GameID: gameID, By: by, Total: total, timestamp: time.Now()}
}

// StakeDoubledEvent is published when the opponent calls the double
type StakeDoubledEvent struct {
	GameID    int
	By        token.Address
	Total     uint64
	timestamp time.Time
}

func (e StakeDoubledEvent) EventType() EventType { return EventTypeStakeDoubled }
func (e StakeDoubledEvent) Timestamp() time.Time { return e.timestamp }

// NewStakeDoubledEvent creates a new stake doubled event
func NewStakeDoubledEvent(gameID int, by token.Address, total uint64) StakeDoubledEvent {
	return StakeDoubledEvent{GameID: gameID, By: by, Total: total, timestamp: time.Now()}
}

// PlayerDroppedEvent is published when a player concedes a pending double
type PlayerDroppedEvent struct {
	GameID    int
	By        token.Address
	PaidTo    token.Address
	Payout    uint64
	Fee       uint64
	timestamp time.Time
}

func (e PlayerDroppedEvent) EventType() EventType { return EventTypePlayerDropped }
func (e PlayerDroppedEvent) Timestamp() time.Time { return e.timestamp }

// NewPlayerDroppedEvent creates a new player dropped event
func NewPlayerDroppedEvent(gameID int, by, paidTo token.Address, payout, fee uint64) PlayerDroppedEvent {
	return PlayerDroppedEvent{
		GameID:    gameID,
		By:        by,
		PaidTo:    paidTo,
		Payout:    payout,
		Fee:       fee,
		timestamp: time.Now(),
	}
}

// GameResolvedEvent is published when a backgammon match settles to a winner
type GameResolvedEvent struct {
	GameID    int
	Winner    token.Address
	Payout    uint64
	timestamp time.Time
}

func (e GameResolvedEvent) EventType() EventType { return EventTypeGameResolved }
func (e GameResolvedEvent) Timestamp() time.Time { return e.timestamp }

// NewGameResolvedEvent creates a new game resolved event
func NewGameResolvedEvent(gameID int, winner token.Address, payout uint64) GameResolvedEvent {
	return GameResolvedEvent{GameID: gameID, Winner: winner, Payout: payout, timestamp: time.Now()}
}

// EventSubscriber can subscribe to settlement events
type EventSubscriber interface {
	OnEvent(event Event)
}

// EventBus manages event publishing and subscription
type EventBus interface {
	Subscribe(subscriber EventSubscriber)
	Unsubscribe(subscriber EventSubscriber)
	Publish(event Event)
}

// SimpleEventBus is a basic in-memory event bus implementation
type SimpleEventBus struct {
	subscribers []EventSubscriber
}

// NewEventBus creates a new event bus
func NewEventBus() EventBus {
	return &SimpleEventBus{
		subscribers: make([]EventSubscriber, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (bus *SimpleEventBus) Subscribe(subscriber EventSubscriber) {
	bus.subscribers = append(bus.subscribers, subscriber)
}

// Unsubscribe removes a subscriber from receiving events
func (bus *SimpleEventBus) Unsubscribe(subscriber EventSubscriber) {
	for i, sub := range bus.subscribers {
		if sub == subscriber {
			bus.subscribers = append(bus.subscribers[:i], bus.subscribers[i+1:]...)
			break
		}
	}
}

// Publish sends an event to all subscribers
func (bus *SimpleEventBus) Publish(event Event) {
	for _, subscriber := range bus.subscribers {
		subscriber.OnEvent(event)
	}
}
