package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gitcg/gitcg-server-go/internal/server"
)

var (
	serverAddr    string
	timeout       time.Duration
	adminPassword string
	createBots    []bool
	createSeed    uint64
)

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "Manage matches on a running server over gRPC",
}

var listMatchesCmd = &cobra.Command{
	Use:   "list",
	Short: "List hosted matches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return callMatchService(cmd, func(ctx context.Context, c *server.MatchServiceClient) (*structpb.Struct, error) {
			return c.ListMatches(ctx, nil)
		})
	},
}

var createMatchCmd = &cobra.Command{
	Use:   "create DECK0 DECK1",
	Short: "Create a match",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(createBots) != 2 {
			return fmt.Errorf("--bots needs two values")
		}
		req, err := structpb.NewStruct(map[string]any{
			"decks": []any{args[0], args[1]},
			"bots":  []any{createBots[0], createBots[1]},
			"seed":  float64(createSeed),
		})
		if err != nil {
			return err
		}
		return callMatchService(cmd, func(ctx context.Context, c *server.MatchServiceClient) (*structpb.Struct, error) {
			return c.CreateMatch(ctx, req)
		})
	},
}

var getMatchCmd = &cobra.Command{
	Use:   "get MATCH_ID",
	Short: "Show a match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := structpb.NewStruct(map[string]any{"id": args[0]})
		if err != nil {
			return err
		}
		return callMatchService(cmd, func(ctx context.Context, c *server.MatchServiceClient) (*structpb.Struct, error) {
			return c.GetMatch(ctx, req)
		})
	},
}

var abortMatchCmd = &cobra.Command{
	Use:   "abort MATCH_ID",
	Short: "Abort a match (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := structpb.NewStruct(map[string]any{"id": args[0]})
		if err != nil {
			return err
		}
		return callMatchService(cmd, func(ctx context.Context, c *server.MatchServiceClient) (*structpb.Struct, error) {
			ctx = metadata.AppendToOutgoingContext(ctx, server.AdminPasswordHeader, adminPassword)
			return c.AbortMatch(ctx, req)
		})
	},
}

func init() {
	matchesCmd.PersistentFlags().StringVar(&serverAddr, "server", "localhost:9090", "gRPC server address")
	matchesCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	abortMatchCmd.Flags().StringVar(&adminPassword, "admin-password", "", "admin password")
	createMatchCmd.Flags().BoolSliceVar(&createBots, "bots", []bool{false, false}, "which seats are played by the server bot")
	createMatchCmd.Flags().Uint64Var(&createSeed, "seed", 0, "fixed seed (0 picks one)")

	matchesCmd.AddCommand(listMatchesCmd, createMatchCmd, getMatchCmd, abortMatchCmd)
}

// callMatchService dials the server, runs call and prints the response
// as JSON.
func callMatchService(cmd *cobra.Command, call func(context.Context, *server.MatchServiceClient) (*structpb.Struct, error)) error {
	conn, err := grpc.NewClient(serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	resp, err := call(ctx, server.NewMatchServiceClient(conn))
	if err != nil {
		return err
	}
	out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(resp)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
