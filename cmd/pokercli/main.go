// cmd/pokercli/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/pokerplan/pokerclient/internal/client"
	"github.com/pokerplan/pokerclient/internal/config"
	"github.com/pokerplan/pokerclient/internal/protocol"
	"github.com/pokerplan/pokerclient/internal/session"
)

// pokercli is a headless planning-poker participant: it joins a room, prints
// the room state whenever it changes, and reads intents from stdin.
//
//	8              vote the card labeled "8"
//	/spectate      toggle yourself between estimator and spectator
//	/bench <id>    force another user to spectator (admin)
//	/nudge <id>    nudge a user
//	/reveal        force-reveal the round (admin)
//	/reset         start a new round (admin)
//	/quit          leave
func main() {
	room := flag.String("room", "", "room id (overrides POKER_ROOM)")
	name := flag.String("name", "", "display name (overrides POKER_NAME)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *room != "" {
		cfg.Room = *room
	}
	if *name != "" {
		cfg.Name = *name
	}
	if cfg.Room == "" || cfg.Name == "" {
		logger.Fatal("room and name are required (-room/-name or POKER_ROOM/POKER_NAME)")
	}

	// Coalesced repaint signal; the dispatch goroutine must never block on us.
	updates := make(chan struct{}, 1)

	c, err := client.New(client.Config{
		ServerURL:    cfg.ServerURL,
		RoomID:       cfg.Room,
		DisplayName:  cfg.Name,
		MaxRetries:   cfg.ReconnectRetries,
		RetryDelay:   cfg.ReconnectDelay,
		NudgeTTL:     cfg.NudgeTTL,
		OnNudgeSound: func() { fmt.Print("\a") },
		OnUpdate: func() {
			select {
			case updates <- struct{}{}:
			default:
			}
		},
	}, logger)
	if err != nil {
		logger.Fatalf("connect: %v", err)
	}

	go readIntents(c, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)

	for {
		select {
		case <-updates:
			printRoom(c.View(), c.NudgeFrom())
		case <-sigs:
			logger.Info("interrupted, leaving room")
			c.Close()
		case <-c.Done():
			if c.Status() == client.StatusClosed {
				logger.Info("session ended")
			}
			return
		}
	}
}

func readIntents(c *client.Client, logger *logrus.Logger) {
	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "/spectate":
			c.ToggleSpectator(ctx)
		case "/bench":
			c.ForceSpectator(ctx, strings.TrimSpace(arg))
		case "/nudge":
			c.Nudge(ctx, strings.TrimSpace(arg))
		case "/reveal":
			c.ForceReveal(ctx)
		case "/reset":
			c.ResetRound(ctx)
		case "/quit":
			c.Close()
			return
		default:
			if strings.HasPrefix(cmd, "/") {
				logger.Warnf("unknown command %q", cmd)
				continue
			}
			c.SelectCard(ctx, line)
		}
	}
}

func printRoom(v session.View, nudgeFrom string) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] room %s", v.Phase(), v.RoomID())
	if value, ok := v.Consensus(); ok {
		fmt.Fprintf(&b, "  ** consensus: %s **", value)
	}
	b.WriteString("\n")

	if me, ok := v.CurrentUser(); ok {
		fmt.Fprintf(&b, "  you: %s", describeUser(me))
		if sel, ok := v.SelectedCard(); ok {
			fmt.Fprintf(&b, " (selected %s)", sel)
		}
		b.WriteString("\n")
	}
	for _, u := range v.OtherUsers() {
		fmt.Fprintf(&b, "  %s\n", describeUser(u))
	}
	if v.AllEstimated() {
		b.WriteString("  everyone has estimated\n")
	}
	if nudgeFrom != "" {
		fmt.Fprintf(&b, "  <<< nudged by %s >>>\n", nudgeFrom)
	}
	fmt.Print(b.String())
}

func describeUser(u protocol.User) string {
	var marks []string
	if u.IsAdmin {
		marks = append(marks, "admin")
	}
	if u.Role == protocol.RoleSpectator {
		marks = append(marks, "spectator")
	} else if u.Vote != nil {
		marks = append(marks, "voted "+*u.Vote)
	} else if u.HasVoted {
		marks = append(marks, "voted")
	}
	if len(marks) == 0 {
		return u.Name
	}
	return fmt.Sprintf("%s (%s)", u.Name, strings.Join(marks, ", "))
}
