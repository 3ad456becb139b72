package main

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/hausgames/treasury/internal/chain"
)

// ChainCmd generates a reveal chain for the commit-reveal oracle
type ChainCmd struct {
	Length int    `kong:"default='1000',help='Number of reveals to derive'"`
	Master string `kong:"help='Master secret as 0x-prefixed hex, random when omitted'"`
	Quiet  bool   `kong:"short='q',help='Print bare hashes without styling'"`
}

var (
	chainHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	chainLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	chainWarnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func (c *ChainCmd) Run() error {
	if c.Length < 1 {
		return fmt.Errorf("length must be at least 1")
	}

	var master chain.Hash
	if c.Master != "" {
		parsed, err := chain.ParseHash(c.Master)
		if err != nil {
			return err
		}
		master = parsed
	} else {
		if _, err := rand.Read(master[:]); err != nil {
			return err
		}
	}

	hashes := chain.Generate(master, c.Length)

	if c.Quiet {
		for _, h := range hashes {
			fmt.Println(h)
		}
		return nil
	}

	fmt.Println(chainHeaderStyle.Render(fmt.Sprintf("Reveal chain, %d plays", c.Length)))
	fmt.Fprintln(os.Stderr, chainWarnStyle.Render("Keep the master secret offline; anyone holding it can predict every outcome."))
	fmt.Fprintf(os.Stderr, "%s %s\n", chainLabelStyle.Render("master"), master)

	fmt.Printf("%s %s\n", chainLabelStyle.Render("tail  "), hashes[0])
	for i, h := range hashes[1:] {
		fmt.Printf("%s %s\n", chainLabelStyle.Render(fmt.Sprintf("%6d", i+1)), h)
	}
	return nil
}
