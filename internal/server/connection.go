package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/hausgames/treasury/internal/backgammon"
	"github.com/hausgames/treasury/internal/chain"
	"github.com/hausgames/treasury/internal/roulette"
	"github.com/hausgames/treasury/internal/settle"
	"github.com/hausgames/treasury/internal/token"
)

// Connection represents a WebSocket connection to an operator client
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	address   token.Address
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
	server    *Server
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, server *Server) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:   conn,
		send:   make(chan *Message, 256),
		logger: logger.WithPrefix("conn"),
		ctx:    ctx,
		cancel: cancel,
		server: server,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed during shutdown.
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// SetAddress binds this connection to an authenticated address
func (c *Connection) SetAddress(addr token.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = addr
}

// Address returns the authenticated address, empty until auth succeeds
func (c *Connection) Address() token.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 65536
)

var ErrConnectionClosed = websocket.ErrCloseSent

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage routes one incoming message. Auth is handled inline; every
// play is handed to the server's dispatch loop so settlement stays
// strictly serialized.
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "address", c.Address())

	if msg.Type == MessageTypeAuth {
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse auth data")
			return
		}
		c.handleAuth(msg, data)
		return
	}

	caller := c.Address()
	if caller == token.ZeroAddress {
		c.sendError(msg, "not_authenticated", "Must authenticate first")
		return
	}

	switch msg.Type {
	case MessageTypePlayRoulette:
		var data PlayRouletteData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse roulette data")
			return
		}
		c.server.submit(func() { c.handlePlayRoulette(msg, caller, data) })

	case MessageTypePlaySlots:
		var data PlaySlotsData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse slots data")
			return
		}
		c.server.submit(func() { c.handlePlaySlots(msg, caller, data) })

	case MessageTypeBgInit:
		var data BgInitData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse init data")
			return
		}
		c.server.submit(func() { c.handleBgInit(msg, caller, data) })

	case MessageTypeBgRaise, MessageTypeBgCall:
		var data BgActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse action data")
			return
		}
		c.server.submit(func() { c.handleBgAction(msg, caller, data) })

	case MessageTypeBgDrop, MessageTypeBgResolve:
		var data BgSettleData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse settle data")
			return
		}
		c.server.submit(func() { c.handleBgSettle(msg, caller, data) })

	case MessageTypeSetTail:
		var data SetTailData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse tail data")
			return
		}
		c.server.submit(func() { c.handleSetTail(msg, caller, data) })

	case MessageTypeGetStats:
		c.handleGetStats(msg)

	default:
		c.sendError(msg, "unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) handleAuth(msg *Message, data AuthData) {
	addr, err := c.server.validator.Validate(data.Address, data.Token)
	if err != nil {
		c.logger.Warn("Auth rejected", "address", data.Address, "error", err)
		response, _ := NewMessage(MessageTypeAuthResponse, AuthResponseData{
			Success: false,
			Error:   "invalid credentials",
		})
		c.reply(msg, response)
		return
	}

	c.SetAddress(addr)
	c.logger.Info("Operator authenticated", "address", addr)
	response, _ := NewMessage(MessageTypeAuthResponse, AuthResponseData{
		Success: true,
		Address: string(addr),
	})
	c.reply(msg, response)
}

func (c *Connection) handlePlayRoulette(msg *Message, caller token.Address, data PlayRouletteData) {
	reveal, err := chain.ParseHash(data.Reveal)
	if err != nil {
		c.sendError(msg, "invalid_reveal", err.Error())
		return
	}

	players := make([]token.Address, len(data.Players))
	for i, p := range data.Players {
		players[i] = token.Address(p)
	}
	betTypes := make([]roulette.BetType, len(data.BetTypes))
	for i, bt := range data.BetTypes {
		betTypes[i] = roulette.BetType(bt)
	}

	outcome, err := c.server.coordinator.PlayRoulette(caller, settle.RouletteRequest{
		Players:      players,
		BetTypes:     betTypes,
		BetValues:    data.BetValues,
		TokenIndexes: data.TokenIndexes,
		Amounts:      data.Amounts,
		Wearables:    data.Wearables,
		LandID:       data.LandID,
		MachineID:    data.MachineID,
		Reveal:       reveal,
	})
	if err != nil {
		c.sendError(msg, "play_failed", err.Error())
		return
	}

	response, _ := NewMessage(MessageTypeResult, RouletteResultData{
		RoundID:    outcome.RoundID,
		Draw:       outcome.Draw,
		TotalWager: outcome.TotalWager,
		TotalWin:   outcome.TotalWin,
		WinAmounts: outcome.WinAmounts,
	})
	c.reply(msg, response)
}

func (c *Connection) handlePlaySlots(msg *Message, caller token.Address, data PlaySlotsData) {
	reveal, err := chain.ParseHash(data.Reveal)
	if err != nil {
		c.sendError(msg, "invalid_reveal", err.Error())
		return
	}

	outcome, err := c.server.coordinator.PlaySlots(caller, settle.SlotsRequest{
		Player:        token.Address(data.Player),
		LandID:        data.LandID,
		MachineID:     data.MachineID,
		Amount:        data.Amount,
		Reveal:        reveal,
		TokenIndex:    data.TokenIndex,
		WearableBonus: data.WearableBonus,
	})
	if err != nil {
		c.sendError(msg, "play_failed", err.Error())
		return
	}

	response, _ := NewMessage(MessageTypeResult, SlotsResultData{
		RoundID:   outcome.RoundID,
		Symbols:   outcome.Symbols,
		Amount:    outcome.Amount,
		WinAmount: outcome.WinAmount,
	})
	c.reply(msg, response)
}

func (c *Connection) handleBgInit(msg *Message, caller token.Address, data BgInitData) {
	g, err := c.server.coordinator.InitGame(caller, data.Stake,
		token.Address(data.PlayerOne), token.Address(data.PlayerTwo),
		data.TokenIndex, data.BonusOne, data.BonusTwo)
	if err != nil {
		c.sendError(msg, "play_failed", err.Error())
		return
	}

	response, _ := NewMessage(MessageTypeResult, BgStateData{
		GameID:     g.ID,
		State:      g.State.String(),
		Stake:      g.Stake,
		Total:      g.Total,
		Multiplier: g.Multiplier,
	})
	c.reply(msg, response)
}

func (c *Connection) handleBgAction(msg *Message, caller token.Address, data BgActionData) {
	var (
		g   backgammon.Game
		err error
	)
	switch msg.Type {
	case MessageTypeBgRaise:
		g, err = c.server.coordinator.RaiseDouble(caller, data.GameID, token.Address(data.Player))
	case MessageTypeBgCall:
		g, err = c.server.coordinator.CallDouble(caller, data.GameID, token.Address(data.Player))
	}
	if err != nil {
		c.sendError(msg, "play_failed", err.Error())
		return
	}

	response, _ := NewMessage(MessageTypeResult, BgStateData{
		GameID:     g.ID,
		State:      g.State.String(),
		Stake:      g.Stake,
		Total:      g.Total,
		Multiplier: g.Multiplier,
	})
	c.reply(msg, response)
}

func (c *Connection) handleBgSettle(msg *Message, caller token.Address, data BgSettleData) {
	var (
		s   backgammon.Settlement
		err error
	)
	switch msg.Type {
	case MessageTypeBgDrop:
		s, err = c.server.coordinator.DropGame(caller, data.GameID, token.Address(data.Player), data.BonusOne, data.BonusTwo)
	case MessageTypeBgResolve:
		s, err = c.server.coordinator.ResolveGame(caller, data.GameID, token.Address(data.Player), data.BonusOne, data.BonusTwo)
	}
	if err != nil {
		c.sendError(msg, "play_failed", err.Error())
		return
	}

	response, _ := NewMessage(MessageTypeResult, BgSettledData{
		GameID: s.Game.ID,
		State:  s.Game.State.String(),
		Paid:   string(s.Paid),
		Payout: s.Payout,
		Fee:    s.Fee,
	})
	c.reply(msg, response)
}

func (c *Connection) handleSetTail(msg *Message, caller token.Address, data SetTailData) {
	tail, err := chain.ParseHash(data.Tail)
	if err != nil {
		c.sendError(msg, "invalid_tail", err.Error())
		return
	}
	if err := c.server.coordinator.SetTail(caller, tail); err != nil {
		c.sendError(msg, "set_tail_failed", err.Error())
		return
	}

	response, _ := NewMessage(MessageTypeResult, TailSetData{Tail: tail.String()})
	c.reply(msg, response)
}

func (c *Connection) handleGetStats(msg *Message) {
	if c.server.stats == nil {
		c.sendError(msg, "stats_disabled", "Statistics collection is not enabled")
		return
	}

	snap := c.server.stats.Snapshot()
	games := make(map[string]GameStatsData, len(snap.Games))
	for name, g := range snap.Games {
		games[name] = GameStatsData{Rounds: g.Rounds, Wagered: g.Wagered, Paid: g.Paid}
	}
	response, _ := NewMessage(MessageTypeStats, StatsData{
		Games:        games,
		MatchesOpen:  snap.MatchesOpen,
		MatchesEnded: snap.MatchesEnded,
		FeesRetained: snap.FeesRetained,
		LargestPaid:  snap.LargestPaid,
	})
	c.reply(msg, response)
}

// reply sends a response carrying the request id of the originating message
func (c *Connection) reply(msg *Message, response *Message) {
	if response == nil {
		return
	}
	response.RequestID = msg.RequestID
	_ = c.SendMessage(response)
}

// sendError sends an error message to the client
func (c *Connection) sendError(msg *Message, code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}
	c.reply(msg, errorMsg)
}
