package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitcg/gitcg-server-go/internal/bot"
	"github.com/gitcg/gitcg-server-go/internal/game"
	"github.com/gitcg/gitcg-server-go/internal/server"
)

var (
	playServer string
	playSeat   int
)

var playCmd = &cobra.Command{
	Use:   "play MATCH_ID",
	Short: "Play a seat of a hosted match with the built-in bot",
	Long:  `Connect to a human seat over WebSocket and answer every request with the built-in bot until the match ends.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().StringVar(&playServer, "server", "ws://localhost:8080", "WebSocket base address of the server")
	playCmd.Flags().IntVar(&playSeat, "seat", 0, "seat to play (0 or 1)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	_, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	u, err := url.Parse(playServer)
	if err != nil {
		return fmt.Errorf("invalid --server: %w", err)
	}
	u = u.JoinPath("matches", args[0], "ws")
	u.RawQuery = url.Values{"seat": {strconv.Itoa(playSeat)}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", u, err)
	}
	defer conn.Close()
	logger.Info("connected", zap.String("url", u.String()), zap.Int("seat", playSeat))

	player := bot.NewPlayer(playSeat, logger)
	var last *game.Notification
	for {
		var msg server.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || (last != nil && last.State.Phase == game.PhaseGameEnd.String()) {
				break
			}
			return fmt.Errorf("connection lost: %w", err)
		}
		switch msg.Type {
		case server.MessageNotification:
			last = msg.Notification
			player.Notify(*msg.Notification)
		case server.MessageRPC:
			if err := answer(cmd.Context(), conn, player, msg); err != nil {
				return err
			}
		case server.MessageError:
			return errors.New(msg.Error)
		}
	}

	if last != nil && last.State.Winner != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "winner: player %d (you are %d)\n", *last.State.Winner, playSeat)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "match ended without a winner")
	}
	return nil
}

func answer(ctx context.Context, conn *websocket.Conn, player *bot.Player, msg server.Message) error {
	resp, err := player.RPC(ctx, *msg.Request)
	if err != nil {
		return err
	}
	var payload any
	switch resp.Method {
	case game.MethodAction:
		payload = resp.Action
	case game.MethodChooseActive:
		payload = resp.ChooseActive
	case game.MethodRerollDice:
		payload = resp.RerollDice
	case game.MethodSelectCard:
		payload = resp.SelectCard
	case game.MethodSwitchHands:
		payload = resp.SwitchHands
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(server.Message{Type: server.MessageResponse, ID: msg.ID, Response: raw})
}
