package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitcg/gitcg-server-go/internal/game"
)

func fiveFrameReplay(t *testing.T) (*game.Registry, *game.Replay) {
	t.Helper()
	reg, err := game.NewRegistryBuilder().Build()
	require.NoError(t, err)
	rp := game.NewReplay("cli")
	for i := 0; i < 5; i++ {
		st := game.NewGameState(game.DefaultRules(), uint64(i))
		require.NoError(t, rp.RecordBatch(game.NotifyBatch{
			State:     st,
			Mutations: []game.Mutation{game.SetWinnerMutation{Winner: i % 2}},
		}))
	}
	return reg, rp
}

func frameHeaders(out string) []string {
	var headers []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "frame ") {
			headers = append(headers, line)
		}
	}
	return headers
}

func TestShowReplay(t *testing.T) {
	tests := []struct {
		name string
		view replayView
		want []string
	}{
		{"all", replayView{}, []string{"frame 0", "frame 1", "frame 2", "frame 3", "frame 4"}},
		{"window", replayView{From: 1, Count: 2}, []string{"frame 1", "frame 2"}},
		{"clamped", replayView{From: 9}, []string{"frame 4"}},
		{"reverse", replayView{From: 2, Reverse: true}, []string{"frame 2", "frame 1", "frame 0"}},
		{"reverse window", replayView{From: 4, Count: 2, Reverse: true}, []string{"frame 4", "frame 3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, rp := fiveFrameReplay(t)
			var out bytes.Buffer
			require.NoError(t, showReplay(&out, reg, rp, tt.view))
			assert.Equal(t, tt.want, frameHeaders(out.String()))
		})
	}
}

func TestShowReplayState(t *testing.T) {
	reg, rp := fiveFrameReplay(t)
	var out bytes.Buffer
	require.NoError(t, showReplay(&out, reg, rp, replayView{From: 3, Count: 1, State: true, Seat: 1, Check: true}))

	text := out.String()
	assert.Contains(t, text, "frame 3\n  setWinner winner=1\n")
	var view struct {
		Phase string `json:"phase"`
	}
	require.NoError(t, json.Unmarshal([]byte(text[strings.Index(text, "{"):]), &view))
	assert.NotEmpty(t, view.Phase)
}

func TestShowReplayErrors(t *testing.T) {
	reg, rp := fiveFrameReplay(t)
	assert.Error(t, showReplay(&bytes.Buffer{}, reg, rp, replayView{Seat: 2}))
	assert.Error(t, showReplay(&bytes.Buffer{}, reg, game.NewReplay("empty"), replayView{}))
}
