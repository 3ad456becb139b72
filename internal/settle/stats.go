package settle

import "sync"

// GameStats tracks per-game settlement totals
type GameStats struct {
	Rounds  int
	Wagered uint64
	Paid    uint64
}

// HoldPercent returns the house hold as a percentage of the handle
func (g GameStats) HoldPercent() float64 {
	if g.Wagered == 0 {
		return 0
	}
	return 100 * (float64(g.Wagered) - float64(g.Paid)) / float64(g.Wagered)
}

// Stats aggregates settlement events for the monitor. Subscribe it to the
// coordinator's event bus.
type Stats struct {
	mu           sync.Mutex
	games        map[string]*GameStats
	matchesOpen  int
	matchesEnded int
	feesRetained uint64
	largestPaid  uint64
}

// NewStats creates an empty stats collector
func NewStats() *Stats {
	return &Stats{games: make(map[string]*GameStats)}
}

// OnEvent incorporates a settlement event into the running totals
func (s *Stats) OnEvent(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := event.(type) {
	case RoundResultEvent:
		g := s.gameLocked(e.Game)
		g.Rounds++
		g.Wagered += e.Wagered
		g.Paid += e.Paid
		if e.Paid > s.largestPaid {
			s.largestPaid = e.Paid
		}
	case GameStartedEvent:
		s.matchesOpen++
		g := s.gameLocked("backgammon")
		g.Wagered += e.Total
	case StakeRaisedEvent:
		g := s.gameLocked("backgammon")
		g.Wagered += e.Total / 3
	case StakeDoubledEvent:
		g := s.gameLocked("backgammon")
		g.Wagered += e.Total / 4
	case PlayerDroppedEvent:
		s.matchesOpen--
		s.matchesEnded++
		s.feesRetained += e.Fee
		g := s.gameLocked("backgammon")
		g.Rounds++
		g.Paid += e.Payout
		if e.Payout > s.largestPaid {
			s.largestPaid = e.Payout
		}
	case GameResolvedEvent:
		s.matchesOpen--
		s.matchesEnded++
		g := s.gameLocked("backgammon")
		g.Rounds++
		g.Paid += e.Payout
		if e.Payout > s.largestPaid {
			s.largestPaid = e.Payout
		}
	}
}

func (s *Stats) gameLocked(name string) *GameStats {
	g, ok := s.games[name]
	if !ok {
		g = &GameStats{}
		s.games[name] = g
	}
	return g
}

// Snapshot is a point-in-time copy of the collected totals
type Snapshot struct {
	Games        map[string]GameStats
	MatchesOpen  int
	MatchesEnded int
	FeesRetained uint64
	LargestPaid  uint64
}

// Snapshot returns a copy safe to render without holding the lock
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	games := make(map[string]GameStats, len(s.games))
	for name, g := range s.games {
		games[name] = *g
	}
	return Snapshot{
		Games:        games,
		MatchesOpen:  s.matchesOpen,
		MatchesEnded: s.matchesEnded,
		FeesRetained: s.feesRetained,
		LargestPaid:  s.largestPaid,
	}
}
