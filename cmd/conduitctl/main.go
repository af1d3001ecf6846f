package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"conduitcraft.ai/internal/protocol"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "worlds":
			worldsCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "audits":
			auditsCmd(os.Args[2:])
			return
		case "log":
			logCmd(os.Args[2:])
			return
		case "recalcs":
			recalcsCmd(os.Args[2:])
			return
		}
	}
	runCmd(os.Args[1:])
}

// runCmd sends one command line over the websocket surface and prints the
// RESULT. With -watch it keeps printing POWER and RETIRE pushes until
// interrupted.
func runCmd(args []string) {
	fs := flag.NewFlagSet("conduitctl", flag.ExitOnError)
	url := fs.String("url", "ws://localhost:8080/v1/ws", "ws url")
	name := fs.String("name", "conduitctl", "client name")
	worldID := fs.String("world", "", "world preference (optional)")
	watch := fs.Bool("watch", false, "print POWER/RETIRE pushes after the result")
	_ = fs.Parse(args)

	line := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if line == "" && !*watch {
		line = "/conduit help"
	}
	if line != "" && !strings.HasPrefix(line, "/conduit") && !strings.HasPrefix(line, "conduit") {
		line = "/conduit " + line
	}

	logger := log.New(os.Stderr, "[conduitctl] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		WorldPreference: *worldID,
		SubscribePower:  *watch,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	var welcome protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&welcome); err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome {
		logger.Fatalf("unexpected %s before WELCOME", welcome.Type)
	}
	logger.Printf("WELCOME session=%s world=%s chunk=%v", welcome.SessionID, welcome.CurrentWorldID, welcome.WorldParams.ChunkSize)

	reqID := ""
	if line != "" {
		reqID = uuid.NewString()
		cmd := protocol.CommandMsg{
			Type:            protocol.TypeCommand,
			ProtocolVersion: protocol.Version,
			ReqID:           reqID,
			Line:            line,
		}
		if err := conn.WriteJSON(cmd); err != nil {
			logger.Fatalf("send COMMAND: %v", err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	exit := 0
	for {
		if *watch {
			_ = conn.SetReadDeadline(time.Time{})
		} else {
			_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if reqID != "" {
				logger.Printf("read: %v", err)
				exit = 1
			}
			break
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeResult:
			var res protocol.ResultMsg
			if err := json.Unmarshal(msg, &res); err != nil {
				continue
			}
			if res.ReqID != reqID {
				continue
			}
			reqID = ""
			printResult(res)
			if !res.OK {
				exit = 1
			}
		case protocol.TypePower:
			var p protocol.PowerMsg
			if err := json.Unmarshal(msg, &p); err != nil {
				continue
			}
			fmt.Println(formatPower(p))
		case protocol.TypeRetire:
			var r protocol.RetireMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			fmt.Println(formatRetire(r))
		}
		if reqID == "" && !*watch {
			break
		}
	}
	os.Exit(exit)
}

func printResult(res protocol.ResultMsg) {
	if !res.OK && res.Code != "" {
		hint := ""
		if protocol.Retryable(res.Code) {
			hint = " (retry later)"
		}
		fmt.Fprintf(os.Stderr, "%s: %s%s\n", res.Code, res.Message, hint)
		return
	}
	fmt.Println(res.Message)
}

func formatPower(p protocol.PowerMsg) string {
	var b strings.Builder
	fmt.Fprintf(&b, "POWER tick=%d network=%d reason=%s members=%d sources=%d changed=%d", p.Tick, p.NetworkID, p.Reason, p.Members, p.Sources, len(p.Changes))
	if p.OverBudget {
		b.WriteString(" over_budget")
	}
	for _, c := range p.Changes {
		fmt.Fprintf(&b, "\n  %d,%d,%d %d->%d", c.Pos[0], c.Pos[1], c.Pos[2], c.From, c.To)
	}
	return b.String()
}

func formatRetire(r protocol.RetireMsg) string {
	s := fmt.Sprintf("RETIRE tick=%d network=%d reason=%s", r.Tick, r.NetworkID, r.Reason)
	if r.Into != 0 {
		s += fmt.Sprintf(" into=%d", r.Into)
	}
	return s
}
