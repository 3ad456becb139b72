package server

import (
	"encoding/json"
	"time"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type AuthData struct {
	Address string `json:"address"`
	Token   string `json:"token,omitempty"`
}

type PlayRouletteData struct {
	Players      []string `json:"players"`
	BetTypes     []int    `json:"betTypes"`
	BetValues    []int    `json:"betValues"`
	TokenIndexes []int    `json:"tokenIndexes"`
	Amounts      []uint64 `json:"amounts"`
	Wearables    []uint64 `json:"wearables"`
	LandID       int      `json:"landId"`
	MachineID    int      `json:"machineId"`
	Reveal       string   `json:"reveal"`
}

type PlaySlotsData struct {
	Player        string `json:"player"`
	LandID        int    `json:"landId"`
	MachineID     int    `json:"machineId"`
	Amount        uint64 `json:"amount"`
	Reveal        string `json:"reveal"`
	TokenIndex    int    `json:"tokenIndex"`
	WearableBonus uint64 `json:"wearableBonus"`
}

type BgInitData struct {
	Stake      uint64 `json:"stake"`
	PlayerOne  string `json:"playerOne"`
	PlayerTwo  string `json:"playerTwo"`
	TokenIndex int    `json:"tokenIndex"`
	BonusOne   uint64 `json:"bonusOne"`
	BonusTwo   uint64 `json:"bonusTwo"`
}

type BgActionData struct {
	GameID int    `json:"gameId"`
	Player string `json:"player"`
}

type BgSettleData struct {
	GameID   int    `json:"gameId"`
	Player   string `json:"player"`
	BonusOne uint64 `json:"bonusOne"`
	BonusTwo uint64 `json:"bonusTwo"`
}

type SetTailData struct {
	Tail string `json:"tail"`
}

// Server → Client Messages

type AuthResponseData struct {
	Success bool   `json:"success"`
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RouletteResultData struct {
	RoundID    string   `json:"roundId"`
	Draw       int      `json:"draw"`
	TotalWager uint64   `json:"totalWager"`
	TotalWin   uint64   `json:"totalWin"`
	WinAmounts []uint64 `json:"winAmounts"`
}

type SlotsResultData struct {
	RoundID   string `json:"roundId"`
	Symbols   [4]int `json:"symbols"`
	Amount    uint64 `json:"amount"`
	WinAmount uint64 `json:"winAmount"`
}

type BgStateData struct {
	GameID     int    `json:"gameId"`
	State      string `json:"state"`
	Stake      uint64 `json:"stake"`
	Total      uint64 `json:"total"`
	Multiplier uint64 `json:"multiplier"`
}

type BgSettledData struct {
	GameID int    `json:"gameId"`
	State  string `json:"state"`
	Paid   string `json:"paid"`
	Payout uint64 `json:"payout"`
	Fee    uint64 `json:"fee"`
}

type TailSetData struct {
	Tail string `json:"tail"`
}

type GameStatsData struct {
	Rounds  int    `json:"rounds"`
	Wagered uint64 `json:"wagered"`
	Paid    uint64 `json:"paid"`
}

type StatsData struct {
	Games        map[string]GameStatsData `json:"games"`
	MatchesOpen  int                      `json:"matchesOpen"`
	MatchesEnded int                      `json:"matchesEnded"`
	FeesRetained uint64                   `json:"feesRetained"`
	LargestPaid  uint64                   `json:"largestPaid"`
}
