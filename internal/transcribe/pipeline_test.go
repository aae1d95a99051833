package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/farmassist/internal/multimodal/stt"
	"github.com/nikhilbhutani/farmassist/internal/process"
)

// fakeFFmpeg copies the input to the output path unless fail is set.
type fakeFFmpeg struct {
	calls  atomic.Int32
	fail   bool
	stderr string
	block  chan struct{}
}

func (f *fakeFFmpeg) Run(ctx context.Context, name string, args ...string) (process.Result, error) {
	f.calls.Add(1)
	res := process.Result{Command: name, Args: args}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			res.ExitCode = -1
			return res, ctx.Err()
		}
	}
	if f.fail {
		res.ExitCode = 1
		res.Stderr = f.stderr
		return res, errors.New("exit status 1")
	}
	src := argValue(args, "-i")
	dst := args[len(args)-1]
	data, err := os.ReadFile(src)
	if err != nil {
		return res, err
	}
	return res, os.WriteFile(dst, append([]byte("PCM:"), data...), 0o644)
}

// fakeRecognizer returns whatever transcribe returns and records the paths
// it was asked to read.
type fakeRecognizer struct {
	mu         sync.Mutex
	paths      []string
	transcribe func(ctx context.Context, path string) (*stt.TranscriptionResponse, error)
}

func (f *fakeRecognizer) Name() string { return "fake" }

func (f *fakeRecognizer) Transcribe(ctx context.Context, req stt.TranscriptionRequest) (*stt.TranscriptionResponse, error) {
	f.mu.Lock()
	f.paths = append(f.paths, req.FilePath)
	f.mu.Unlock()
	return f.transcribe(ctx, req.FilePath)
}

func (f *fakeRecognizer) called() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
}

func fixedTranscript(text string) func(context.Context, string) (*stt.TranscriptionResponse, error) {
	return func(context.Context, string) (*stt.TranscriptionResponse, error) {
		return &stt.TranscriptionResponse{Text: text}, nil
	}
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

type harness struct {
	root       string
	ffmpeg     *fakeFFmpeg
	recognizer *fakeRecognizer
	pipeline   *Pipeline

	mu     sync.Mutex
	states []State
}

func newHarness(t *testing.T, ffmpeg *fakeFFmpeg, rec *fakeRecognizer) *harness {
	t.Helper()
	h := &harness{
		root:       filepath.Join(t.TempDir(), "uploads"),
		ffmpeg:     ffmpeg,
		recognizer: rec,
	}
	stager := NewStager(h.root)
	require.NoError(t, stager.Init())
	h.pipeline = NewPipeline(Options{
		Stager:     stager,
		Converter:  NewConverter("ffmpeg", ffmpeg, time.Second),
		Recognizer: rec,
		Pool:       NewPool(4),
		Language:   "en-US",
		OnState: func(_ string, s State) {
			h.mu.Lock()
			h.states = append(h.states, s)
			h.mu.Unlock()
		},
	})
	return h
}

func (h *harness) assertNoArtifacts(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.root)
	require.NoError(t, err)
	assert.Empty(t, entries, "upload dir should be empty after the run")
}

func TestPipelineSuccessRemovesArtifacts(t *testing.T) {
	var seenCanonical bool
	rec := &fakeRecognizer{transcribe: func(_ context.Context, path string) (*stt.TranscriptionResponse, error) {
		_, err := os.Stat(path)
		seenCanonical = err == nil
		return &stt.TranscriptionResponse{Text: "turn on the pump"}, nil
	}}
	h := newHarness(t, &fakeFFmpeg{}, rec)

	text, err := h.pipeline.Run(context.Background(), Upload{Filename: "sample.wav", Body: strings.NewReader("RIFF....")})
	require.NoError(t, err)

	assert.Equal(t, "turn on the pump", text)
	assert.True(t, seenCanonical, "recognizer should read an existing canonical file")
	assert.Equal(t, canonicalName, filepath.Base(rec.paths[0]))
	assert.Equal(t, []State{StateReceived, StateStaged, StateConverted, StateTranscribed, StateCleanedSuccess}, h.states)
	h.assertNoArtifacts(t)
}

func TestPipelineRejectsDisallowedExtension(t *testing.T) {
	ffmpeg := &fakeFFmpeg{}
	rec := &fakeRecognizer{transcribe: fixedTranscript("x")}
	h := newHarness(t, ffmpeg, rec)

	_, err := h.pipeline.Run(context.Background(), Upload{Filename: "notes.txt", Body: strings.NewReader("hello")})
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, InvalidFormatMessage, vErr.Message)

	status, msg, _ := Describe(err)
	assert.Equal(t, 400, status)
	assert.Equal(t, "Invalid file format. Please upload a .wav, .mp3, or .ogg file.", msg)

	assert.Zero(t, ffmpeg.calls.Load())
	assert.Zero(t, rec.called())
	assert.Equal(t, []State{StateReceived, StateCleanedFailure}, h.states)
	h.assertNoArtifacts(t)
}

func TestPipelineConversionFailure(t *testing.T) {
	ffmpeg := &fakeFFmpeg{fail: true, stderr: "corrupt.mp3: Invalid data found when processing input\n"}
	rec := &fakeRecognizer{transcribe: fixedTranscript("never")}
	h := newHarness(t, ffmpeg, rec)

	_, err := h.pipeline.Run(context.Background(), Upload{Filename: "corrupt.mp3", Body: strings.NewReader("garbage")})
	require.Error(t, err)

	var cErr *ConversionError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, 1, cErr.ExitCode)

	status, msg, _ := Describe(err)
	assert.Equal(t, 500, status)
	assert.Contains(t, msg, "Invalid data found")

	assert.Zero(t, rec.called(), "recognizer must not run after a failed conversion")
	assert.Equal(t, []State{StateReceived, StateStaged, StateCleanedFailure}, h.states)
	h.assertNoArtifacts(t)
}

func TestPipelineTranscriptionFailure(t *testing.T) {
	rec := &fakeRecognizer{transcribe: func(context.Context, string) (*stt.TranscriptionResponse, error) {
		return nil, &stt.ClientError{Backend: "riva", ExitCode: 1, Detail: "Unauthenticated: invalid API key"}
	}}
	h := newHarness(t, &fakeFFmpeg{}, rec)

	_, err := h.pipeline.Run(context.Background(), Upload{Filename: "field.ogg", Body: strings.NewReader("OggS")})
	require.Error(t, err)

	var tErr *TranscriptionError
	require.ErrorAs(t, err, &tErr)

	status, msg, detail := Describe(err)
	assert.Equal(t, 500, status)
	assert.Equal(t, "Transcription failed: Unauthenticated: invalid API key", msg)
	assert.Equal(t, "Unauthenticated: invalid API key", detail)
	assert.Equal(t, []State{StateReceived, StateStaged, StateConverted, StateCleanedFailure}, h.states)
	h.assertNoArtifacts(t)
}

func TestPipelineEmptyTranscriptIsFailure(t *testing.T) {
	h := newHarness(t, &fakeFFmpeg{}, &fakeRecognizer{transcribe: fixedTranscript("")})

	_, err := h.pipeline.Run(context.Background(), Upload{Filename: "quiet.wav", Body: strings.NewReader("RIFF")})

	var tErr *TranscriptionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "recognizer returned an empty transcript", tErr.Detail)
	h.assertNoArtifacts(t)
}

func TestPipelineRecognizerPanicStillCleansUp(t *testing.T) {
	rec := &fakeRecognizer{transcribe: func(context.Context, string) (*stt.TranscriptionResponse, error) {
		panic("client exploded")
	}}
	h := newHarness(t, &fakeFFmpeg{}, rec)

	_, err := h.pipeline.Run(context.Background(), Upload{Filename: "a.wav", Body: strings.NewReader("RIFF")})

	var uErr *UnexpectedError
	require.ErrorAs(t, err, &uErr)
	status, msg, _ := Describe(err)
	assert.Equal(t, 500, status)
	assert.Equal(t, "An unexpected error occurred", msg)
	h.assertNoArtifacts(t)
}

func TestPipelineCancelledDuringRecognition(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	rec := &fakeRecognizer{transcribe: func(ctx context.Context, _ string) (*stt.TranscriptionResponse, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	h := newHarness(t, &fakeFFmpeg{}, rec)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.pipeline.Run(ctx, Upload{Filename: "long.mp3", Body: strings.NewReader("ID3")})
		errCh <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errCh:
		var tErr *TranscriptionError
		require.ErrorAs(t, err, &tErr)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not return after cancellation")
	}
	h.assertNoArtifacts(t)
}

func TestPipelineConversionTimeout(t *testing.T) {
	ffmpeg := &fakeFFmpeg{block: make(chan struct{})}
	rec := &fakeRecognizer{transcribe: fixedTranscript("never")}
	h := newHarness(t, ffmpeg, rec)
	h.pipeline.converter = NewConverter("ffmpeg", ffmpeg, 50*time.Millisecond)

	_, err := h.pipeline.Run(context.Background(), Upload{Filename: "slow.wav", Body: strings.NewReader("RIFF")})

	var cErr *ConversionError
	require.ErrorAs(t, err, &cErr)
	assert.Contains(t, cErr.Error(), "timed out")
	assert.Zero(t, rec.called())
	h.assertNoArtifacts(t)
}

func TestPipelineConcurrentRunsUseSeparateArtifacts(t *testing.T) {
	rec := &fakeRecognizer{transcribe: func(_ context.Context, path string) (*stt.TranscriptionResponse, error) {
		time.Sleep(5 * time.Millisecond)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return &stt.TranscriptionResponse{Text: string(data)}, nil
	}}
	h := newHarness(t, &fakeFFmpeg{}, rec)

	const n = 12
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf("clip-%02d", i)
			results[i], errs[i] = h.pipeline.Run(context.Background(), Upload{
				Filename: "recording.wav",
				Body:     strings.NewReader(body),
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("PCM:clip-%02d", i), results[i])
	}

	paths := map[string]bool{}
	for _, p := range rec.paths {
		paths[p] = true
	}
	assert.Len(t, paths, n, "every run should convert into its own canonical file")
	h.assertNoArtifacts(t)
}

func TestProcessStagedWorkspace(t *testing.T) {
	h := newHarness(t, &fakeFFmpeg{}, &fakeRecognizer{transcribe: fixedTranscript("irrigate at dawn")})

	ws, err := h.pipeline.Stager().Stage(context.Background(), "voice.ogg", strings.NewReader("OggS"))
	require.NoError(t, err)

	reopened, err := h.pipeline.Stager().Open(ws.ID, filepath.Base(ws.StagedPath))
	require.NoError(t, err)

	text, err := h.pipeline.Process(context.Background(), reopened)
	require.NoError(t, err)
	assert.Equal(t, "irrigate at dawn", text)
	h.assertNoArtifacts(t)
}
