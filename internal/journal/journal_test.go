package journal

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/internal/relocate"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recording struct {
	got []Outcome
	err error
}

func (r *recording) Record(_ context.Context, o Outcome) error {
	r.got = append(r.got, o)
	return r.err
}

type published struct {
	key   string
	value any
}

type capturePublisher struct {
	records []published
}

func (p *capturePublisher) Publish(_ context.Context, key string, value any) error {
	p.records = append(p.records, published{key, value})
	return nil
}

func sampleOutcome() Outcome {
	return Outcome{
		RunID:    "run-1",
		Date:     "20250401",
		Input:    "/in/20250401.txt",
		Status:   StatusSucceeded,
		Strategy: "fenced",
		Moves: []relocate.Move{
			{Artifact: "source", From: "/out/20250401.tex", To: "/dest/tex/20250401.tex", Status: relocate.StatusMoved},
			{Artifact: "compiled", From: "/out/20250401.pdf", Status: relocate.StatusMissing},
		},
		Duration:   1500 * time.Millisecond,
		FinishedAt: time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestMultiCallsEveryRecorder(t *testing.T) {
	first := &recording{err: errors.New("sink down")}
	second := &recording{}

	err := Multi{first, second}.Record(context.Background(), sampleOutcome())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.Len(t, first.got, 1)
	assert.Len(t, second.got, 1)
}

func TestNopAndEmptyMulti(t *testing.T) {
	assert.NoError(t, Nop{}.Record(context.Background(), sampleOutcome()))
	assert.NoError(t, Multi{}.Record(context.Background(), sampleOutcome()))
}

func TestEventRecorderKeysByDate(t *testing.T) {
	pub := &capturePublisher{}
	require.NoError(t, NewEventRecorder(pub).Record(context.Background(), sampleOutcome()))

	require.Len(t, pub.records, 1)
	assert.Equal(t, "20250401", pub.records[0].key)

	raw, err := json.Marshal(pub.records[0].value)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "succeeded", decoded["status"])
	assert.Equal(t, "fenced", decoded["extraction"])
	assert.Len(t, decoded["moves"], 2)
	assert.NotContains(t, decoded, "error")
}

// historyStore connects to the database named by DOCPIPE_TEST_POSTGRES_HOST
// and skips when it is unset or unreachable.
func historyStore(t *testing.T) *HistoryStore {
	t.Helper()
	host := os.Getenv("DOCPIPE_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("DOCPIPE_TEST_POSTGRES_HOST not set")
	}
	cfg := config.Default().History
	cfg.Host = host
	if port, err := strconv.Atoi(os.Getenv("DOCPIPE_TEST_POSTGRES_PORT")); err == nil {
		cfg.Port = port
	}
	cfg.Password = os.Getenv("DOCPIPE_TEST_POSTGRES_PASSWORD")
	cfg.SSLMode = "disable"
	db, err := postgres.Open(context.Background(), cfg)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewHistoryStore(db)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestHistoryStoreRoundTrip(t *testing.T) {
	store := historyStore(t)
	ctx := context.Background()

	o := sampleOutcome()
	o.RunID = "history-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	o.FinishedAt = time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.Record(ctx, o))

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	var found *Outcome
	for i := range recent {
		if recent[i].RunID == o.RunID {
			found = &recent[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, StatusSucceeded, found.Status)
	assert.Equal(t, 1500*time.Millisecond, found.Duration)
}
