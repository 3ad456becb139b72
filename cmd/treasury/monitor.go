package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/hausgames/treasury/internal/server"
)

// MonitorCmd polls a running server for settlement statistics
type MonitorCmd struct {
	URL      string        `kong:"default='ws://localhost:8080/ws',help='Server WebSocket URL'"`
	Address  string        `kong:"help='Operator address to authenticate as'"`
	Token    string        `kong:"help='Operator credential'"`
	Interval time.Duration `kong:"default='5s',help='Polling interval'"`
	Once     bool          `kong:"help='Print one snapshot and exit'"`
}

var (
	monitorTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	monitorHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("241"))
	monitorHoldStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	monitorBoxStyle    = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("63")).
				Padding(0, 1)
)

func (c *MonitorCmd) Run() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.URL, err)
	}
	defer func() { _ = conn.Close() }()

	if err := c.authenticate(conn); err != nil {
		return err
	}

	for {
		stats, err := c.fetch(conn)
		if err != nil {
			return err
		}
		fmt.Println(renderStats(stats))

		if c.Once {
			return nil
		}
		time.Sleep(c.Interval)
	}
}

func (c *MonitorCmd) authenticate(conn *websocket.Conn) error {
	msg, err := server.NewMessage(server.MessageTypeAuth, server.AuthData{
		Address: c.Address,
		Token:   c.Token,
	})
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(msg); err != nil {
		return err
	}

	var reply server.Message
	if err := conn.ReadJSON(&reply); err != nil {
		return err
	}
	var resp server.AuthResponseData
	if err := json.Unmarshal(reply.Data, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("authentication rejected: %s", resp.Error)
	}
	return nil
}

func (c *MonitorCmd) fetch(conn *websocket.Conn) (*server.StatsData, error) {
	msg, err := server.NewMessage(server.MessageTypeGetStats, struct{}{})
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(msg); err != nil {
		return nil, err
	}

	var reply server.Message
	if err := conn.ReadJSON(&reply); err != nil {
		return nil, err
	}
	if reply.Type == server.MessageTypeError {
		var errData server.ErrorData
		_ = json.Unmarshal(reply.Data, &errData)
		return nil, fmt.Errorf("server error: %s", errData.Message)
	}

	var stats server.StatsData
	if err := json.Unmarshal(reply.Data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func renderStats(stats *server.StatsData) string {
	var b strings.Builder
	b.WriteString(monitorTitleStyle.Render("Settlement totals"))
	b.WriteString("\n")
	b.WriteString(monitorHeaderStyle.Render(fmt.Sprintf("%-12s %8s %14s %14s %8s", "game", "rounds", "wagered", "paid", "hold")))
	b.WriteString("\n")

	names := make([]string, 0, len(stats.Games))
	for name := range stats.Games {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g := stats.Games[name]
		hold := 0.0
		if g.Wagered > 0 {
			hold = 100 * (float64(g.Wagered) - float64(g.Paid)) / float64(g.Wagered)
		}
		b.WriteString(fmt.Sprintf("%-12s %8d %14d %14d %s\n",
			name, g.Rounds, g.Wagered, g.Paid,
			monitorHoldStyle.Render(fmt.Sprintf("%7.2f%%", hold))))
	}

	b.WriteString(fmt.Sprintf("\nmatches open %d, ended %d\n", stats.MatchesOpen, stats.MatchesEnded))
	b.WriteString(fmt.Sprintf("fees retained %d, largest payout %d", stats.FeesRetained, stats.LargestPaid))

	return monitorBoxStyle.Render(b.String())
}
