package main

import (
	"flag"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rajan093/VastuAi/internal/tui"
)

// Terminal chat client for a running VastuAi server.
// Usage: chat -server http://localhost:8080 -email you@example.com -password secret [-signup]
func main() {
	server := flag.String("server", "http://localhost:8080", "VastuAi server base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	signup := flag.Bool("signup", false, "create the account first")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	client := tui.NewClient(*server)
	var err error
	if *signup {
		err = client.Signup(*email, *password)
	} else {
		err = client.Login(*email, *password)
	}
	if err != nil {
		log.Fatalf("auth failed: %v", err)
	}

	p := tea.NewProgram(tui.New(client), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("tui: %v", err)
	}
}
