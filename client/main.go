package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

// packet is the wire envelope; mirrors network.Packet.
type packet struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func send(c *websocket.Conn, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.WriteJSON(&packet{Event: event, Data: data})
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	userID := flag.Int64("user", 1001, "user id")
	name := flag.String("name", "tester", "display name")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			var p packet
			if err := c.ReadJSON(&p); err != nil {
				log.Printf("Read error: %v", err)
				return
			}
			log.Printf("<- %s %s", p.Event, string(p.Data))
		}
	}()

	if err := send(c, "hello", map[string]interface{}{"userId": *userID, "name": *name}); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}

	log.Println("Commands: join <gameType> <players> <fee> | leave | move <gameId> <data> | state <gameId> | quit")

	// Input loop
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "join":
				if len(fields) != 4 {
					log.Println("usage: join <gameType> <players> <fee>")
					continue
				}
				send(c, "joinMatchmaking", map[string]interface{}{
					"gameType":   fields[1],
					"maxPlayers": atoi(fields[2]),
					"entryFee":   atoi(fields[3]),
				})
			case "leave":
				send(c, "leaveMatchmaking", struct{}{})
			case "move":
				if len(fields) < 3 {
					log.Println("usage: move <gameId> <data>")
					continue
				}
				send(c, "makeMove", map[string]interface{}{
					"gameId":   fields[1],
					"moveData": strings.Join(fields[2:], " "),
				})
			case "state":
				if len(fields) != 2 {
					log.Println("usage: state <gameId>")
					continue
				}
				send(c, "getGameState", map[string]interface{}{"gameId": fields[1]})
			case "quit":
				c.Close()
				return
			}
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		log.Println("Interrupted")
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
