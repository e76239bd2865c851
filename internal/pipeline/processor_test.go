package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/rbright/parla/internal/dictionary"
	"github.com/rbright/parla/internal/enhance"
	"github.com/rbright/parla/internal/store"
	"github.com/rbright/parla/internal/transcript"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snapshot dictionary.Snapshot
	err      error
	calls    int
}

func (f *fakeSource) Snapshot(context.Context) (dictionary.Snapshot, error) {
	f.calls++
	return f.snapshot, f.err
}

type fakeEnhancer struct {
	reply string
	err   error
	seen  []enhance.Request
}

func (f *fakeEnhancer) Enhance(_ context.Context, req enhance.Request) (string, error) {
	f.seen = append(f.seen, req)
	if f.err != nil {
		return req.Text, f.err
	}
	return f.reply, nil
}

type fakeCommitter struct {
	texts []string
	err   error
}

func (f *fakeCommitter) Commit(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return f.err
}

type fakeHistory struct {
	entries []store.HistoryEntry
	err     error
}

func (f *fakeHistory) RecordHistory(_ context.Context, entry store.HistoryEntry) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.entries = append(f.entries, entry)
	return int64(len(f.entries)), nil
}

type fakeNotifier struct {
	completed int
	errors    []string
}

func (f *fakeNotifier) CueComplete(context.Context) { f.completed++ }

func (f *fakeNotifier) ShowError(_ context.Context, text string) {
	f.errors = append(f.errors, text)
}

func sampleSource(t *testing.T) *fakeSource {
	t.Helper()

	nyc, err := dictionary.NewRule([]string{"new york"}, "NYC", 0)
	require.NoError(t, err)
	ml, err := dictionary.NewRule([]string{"ml", "machine learning"}, "Machine Learning", 1)
	require.NoError(t, err)
	word, err := dictionary.NewVocabularyEntry("parla")
	require.NoError(t, err)

	return &fakeSource{snapshot: dictionary.Snapshot{
		Rules:      []dictionary.ReplacementRule{nyc, ml},
		Vocabulary: []dictionary.VocabularyEntry{word},
	}}
}

func TestProcessRunsEveryStage(t *testing.T) {
	t.Parallel()

	source := sampleSource(t)
	enhancer := &fakeEnhancer{reply: "I study Machine Learning in NYC."}
	committer := &fakeCommitter{}
	history := &fakeHistory{}

	p := New(source,
		WithTranscriptOptions(transcript.Options{TrailingSpace: true, CapitalizeSentences: true}),
		WithEnhancer(enhancer),
		WithCommitter(committer),
		WithHistory(history),
	)

	result, err := p.Process(context.Background(), "  i study   ml in new york ")
	require.NoError(t, err)

	require.Equal(t, "I study ml in new york", result.Normalized)
	require.Equal(t, "I study Machine Learning in NYC", result.DictionaryText)
	require.Equal(t, "I study Machine Learning in NYC. ", result.Final)
	require.True(t, result.Enhanced)
	require.NoError(t, result.EnhancementErr)
	require.True(t, result.Committed)
	require.Equal(t, int64(1), result.HistoryID)

	require.Len(t, result.Applied, 2)
	require.Equal(t, "Machine Learning", result.Applied[0].Replacement)
	require.Equal(t, "NYC", result.Applied[1].Replacement)

	require.Len(t, enhancer.seen, 1)
	require.Equal(t, "I study Machine Learning in NYC", enhancer.seen[0].Text)
	require.Equal(t, []string{"parla"}, enhancer.seen[0].Vocabulary)
	require.Len(t, enhancer.seen[0].Applied, 2)

	require.Equal(t, []string{"I study Machine Learning in NYC. "}, committer.texts)

	require.Len(t, history.entries, 1)
	entry := history.entries[0]
	require.Equal(t, "  i study   ml in new york ", entry.RawText)
	require.Equal(t, "I study Machine Learning in NYC", entry.DictionaryText)
	require.Equal(t, result.Final, entry.FinalText)
	require.Equal(t, result.Applied[0].ID, entry.AppliedRules[0])
	require.True(t, entry.Enhanced)
	require.Empty(t, entry.EnhancementError)
}

func TestProcessEnhancementFailureFallsBack(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	enhancer := &fakeEnhancer{err: errors.New("endpoint down")}
	committer := &fakeCommitter{}
	history := &fakeHistory{}

	p := New(sampleSource(t),
		WithEnhancer(enhancer),
		WithCommitter(committer),
		WithHistory(history),
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
	)

	result, err := p.Process(context.Background(), "meet me in new york")
	require.NoError(t, err)
	require.Equal(t, "meet me in NYC", result.Final)
	require.False(t, result.Enhanced)
	require.EqualError(t, result.EnhancementErr, "endpoint down")
	require.Equal(t, []string{"meet me in NYC"}, committer.texts)
	require.Equal(t, "endpoint down", history.entries[0].EnhancementError)
	require.Contains(t, logs.String(), "enhancement failed")
}

func TestProcessEmptyEnhancementReplyKeepsDictionaryText(t *testing.T) {
	t.Parallel()

	p := New(sampleSource(t), WithEnhancer(&fakeEnhancer{reply: "  "}))

	result, err := p.Process(context.Background(), "new york")
	require.NoError(t, err)
	require.Equal(t, "NYC", result.Final)
	require.False(t, result.Enhanced)
}

func TestProcessWithoutDictionary(t *testing.T) {
	t.Parallel()

	source := sampleSource(t)
	p := New(source, WithoutDictionary())

	result, err := p.Process(context.Background(), "new york")
	require.NoError(t, err)
	require.Equal(t, "new york", result.Final)
	require.Empty(t, result.Applied)
	require.Zero(t, source.calls)
}

func TestProcessEmptyInputSkipsEverything(t *testing.T) {
	t.Parallel()

	source := sampleSource(t)
	committer := &fakeCommitter{}
	history := &fakeHistory{}
	p := New(source, WithCommitter(committer), WithHistory(history))

	result, err := p.Process(context.Background(), " \n\t ")
	require.NoError(t, err)
	require.Empty(t, result.Final)
	require.False(t, result.Committed)
	require.Zero(t, source.calls)
	require.Empty(t, committer.texts)
	require.Empty(t, history.entries)
}

func TestProcessSnapshotFailure(t *testing.T) {
	t.Parallel()

	p := New(&fakeSource{err: errors.New("database locked")})

	_, err := p.Process(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "load dictionary")
}

func TestProcessCommitFailureSkipsHistory(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{}
	p := New(sampleSource(t),
		WithCommitter(&fakeCommitter{err: errors.New("no display")}),
		WithHistory(history),
	)

	result, err := p.Process(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "commit transcript")
	require.False(t, result.Committed)
	require.Equal(t, "hello", result.Final)
	require.Empty(t, history.entries)
}

func TestProcessNotifiesAfterCommit(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	p := New(sampleSource(t), WithCommitter(&fakeCommitter{}), WithNotifier(notifier))

	_, err := p.Process(context.Background(), "new york")
	require.NoError(t, err)
	require.Equal(t, 1, notifier.completed)
	require.Empty(t, notifier.errors)
}

func TestProcessNotifiesEnhancementFallback(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	p := New(sampleSource(t),
		WithEnhancer(&fakeEnhancer{err: errors.New("endpoint down")}),
		WithCommitter(&fakeCommitter{}),
		WithNotifier(notifier),
	)

	result, err := p.Process(context.Background(), "new york")
	require.NoError(t, err)
	require.Equal(t, "NYC", result.Final)
	require.Equal(t, []string{"Enhancement failed; kept dictionary text"}, notifier.errors)
	require.Equal(t, 1, notifier.completed)
}

func TestProcessNotifiesCommitFailure(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	p := New(sampleSource(t),
		WithCommitter(&fakeCommitter{err: errors.New("no display")}),
		WithNotifier(notifier),
	)

	_, err := p.Process(context.Background(), "hello")
	require.Error(t, err)
	require.Equal(t, []string{"Transcript not copied: no display"}, notifier.errors)
	require.Zero(t, notifier.completed)
}

func TestProcessWithoutCommitterSkipsCue(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	p := New(sampleSource(t), WithNotifier(notifier))

	_, err := p.Process(context.Background(), "hello")
	require.NoError(t, err)
	require.Zero(t, notifier.completed)
	require.Empty(t, notifier.errors)
}

func TestProcessHistoryFailureIsLogged(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	p := New(sampleSource(t),
		WithHistory(&fakeHistory{err: errors.New("disk full")}),
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
	)

	result, err := p.Process(context.Background(), "hello")
	require.NoError(t, err)
	require.Zero(t, result.HistoryID)
	require.Contains(t, logs.String(), "disk full")
}

func TestProcessNilSourceStillNormalizes(t *testing.T) {
	t.Parallel()

	p := New(nil, WithTranscriptOptions(transcript.Options{CapitalizeSentences: true}))

	result, err := p.Process(context.Background(), "hello there")
	require.NoError(t, err)
	require.Equal(t, "Hello there", result.Final)
}
