package game

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrFrameOutOfRange is returned by StateAt for an index past the
// recorded frames.
var ErrFrameOutOfRange = errors.New("replay frame out of range")

// ReplayFrame is one flushed batch: the mutations it carried and the
// encoded snapshot after them.
type ReplayFrame struct {
	Mutations []string        `json:"mutations"`
	State     json.RawMessage `json:"state"`
}

// Replay is a recorded match as a sequence of frames that can be stepped
// through.
type Replay struct {
	MatchID      string
	Frames       []ReplayFrame
	CurrentIndex int
	mu           sync.RWMutex
}

// NewReplay creates an empty replay.
func NewReplay(matchID string) *Replay {
	return &Replay{
		MatchID: matchID,
		Frames:  make([]ReplayFrame, 0),
	}
}

// RecordBatch appends the frame of one flushed batch.
func (r *Replay) RecordBatch(b NotifyBatch) error {
	state, err := EncodeState(b.State)
	if err != nil {
		return err
	}
	frame := ReplayFrame{Mutations: make([]string, len(b.Mutations)), State: state}
	for i, m := range b.Mutations {
		frame.Mutations[i] = Describe(m)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Frames = append(r.Frames, frame)
	return nil
}

// Snapshot returns a copy of the frames recorded so far.
func (r *Replay) Snapshot() []ReplayFrame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ReplayFrame, len(r.Frames))
	copy(out, r.Frames)
	return out
}

// Start rewinds to the first frame.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.CurrentIndex = 0
}

// Next returns the current frame and advances.
func (r *Replay) Next() (ReplayFrame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex < len(r.Frames) {
		frame := r.Frames[r.CurrentIndex]
		r.CurrentIndex++
		return frame, true
	}
	return ReplayFrame{}, false
}

// Previous steps back one frame and returns it.
func (r *Replay) Previous() (ReplayFrame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		return r.Frames[r.CurrentIndex], true
	}
	return ReplayFrame{}, false
}

// Skip moves by count frames, clamped to the recorded range.
func (r *Replay) Skip(count int) (ReplayFrame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Frames) == 0 {
		return ReplayFrame{}, false
	}
	r.CurrentIndex = min(max(r.CurrentIndex+count, 0), len(r.Frames)-1)
	return r.Frames[r.CurrentIndex], true
}

// Size returns the number of frames.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.Frames)
}

// StateAt decodes the snapshot of frame index.
func (r *Replay) StateAt(reg *Registry, index int) (*GameState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= len(r.Frames) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrFrameOutOfRange, index, len(r.Frames))
	}
	return DecodeState(reg, r.Frames[index].State)
}

// replayMetadata heads a serialized replay.
type replayMetadata struct {
	MatchID    string    `json:"matchId"`
	Timestamp  time.Time `json:"timestamp"`
	Version    int       `json:"version"`
	FrameCount int       `json:"frameCount"`
}

// WriteTo writes the replay as gzipped JSON: a metadata record followed by
// one record per frame.
func (r *Replay) WriteTo(w io.Writer) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counter := &countingWriter{w: w}
	gzipWriter := gzip.NewWriter(counter)
	encoder := json.NewEncoder(gzipWriter)

	metadata := replayMetadata{
		MatchID:    r.MatchID,
		Timestamp:  time.Now().UTC(),
		Version:    encodingVersion,
		FrameCount: len(r.Frames),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return counter.n, fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i := range r.Frames {
		if err := encoder.Encode(&r.Frames[i]); err != nil {
			return counter.n, fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
	}
	if err := gzipWriter.Close(); err != nil {
		return counter.n, fmt.Errorf("failed to flush replay: %w", err)
	}
	return counter.n, nil
}

// Marshal returns the WriteTo encoding as bytes.
func (r *Replay) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadReplay reads a replay written by WriteTo.
func ReadReplay(rd io.Reader) (*Replay, error) {
	gzipReader, err := gzip.NewReader(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	decoder := json.NewDecoder(gzipReader)
	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != encodingVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	replay := NewReplay(metadata.MatchID)
	for i := 0; i < metadata.FrameCount; i++ {
		var frame ReplayFrame
		if err := decoder.Decode(&frame); err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", i, err)
		}
		replay.Frames = append(replay.Frames, frame)
	}
	return replay, nil
}

// UnmarshalReplay is ReadReplay over a byte slice.
func UnmarshalReplay(data []byte) (*Replay, error) {
	return ReadReplay(bytes.NewReader(data))
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// ReplayRecorder keeps the replays of running matches.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay // matchID -> Replay
}

// NewReplayRecorder creates a recorder.
func NewReplayRecorder(logger *zap.Logger) *ReplayRecorder {
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
	}
}

// StartRecording begins recording a match.
func (rr *ReplayRecorder) StartRecording(matchID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.replays[matchID] = NewReplay(matchID)

	if rr.logger != nil {
		rr.logger.Info("started replay recording", zap.String("match_id", matchID))
	}
}

// Record returns a NotifyBatch observer that appends to the match's
// replay. Batches of a match that is not being recorded are dropped.
func (rr *ReplayRecorder) Record(matchID string) func(NotifyBatch) {
	return func(b NotifyBatch) {
		rr.mu.RLock()
		replay := rr.replays[matchID]
		rr.mu.RUnlock()
		if replay == nil {
			return
		}
		if err := replay.RecordBatch(b); err != nil && rr.logger != nil {
			rr.logger.Warn("failed to record replay frame",
				zap.String("match_id", matchID),
				zap.Error(err),
			)
		}
	}
}

// GetReplay returns the replay of a match.
func (rr *ReplayRecorder) GetReplay(matchID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	replay, exists := rr.replays[matchID]
	return replay, exists
}

// Finish stops recording a match and hands back its replay.
func (rr *ReplayRecorder) Finish(matchID string) (*Replay, error) {
	rr.mu.Lock()
	replay, exists := rr.replays[matchID]
	delete(rr.replays, matchID)
	rr.mu.Unlock()

	if !exists {
		return nil, fmt.Errorf("no replay found for match %s", matchID)
	}
	if rr.logger != nil {
		rr.logger.Info("finished replay recording",
			zap.String("match_id", matchID),
			zap.Int("frame_count", replay.Size()),
		)
	}
	return replay, nil
}
