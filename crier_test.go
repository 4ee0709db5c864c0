package crier

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEmitter builds an initialized emitter over buffers with an
// adopted log file, no spinner and no slog capture.
func newTestEmitter(t *testing.T, mode Mode) (*Emitter, *bytes.Buffer, *bytes.Buffer, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "run.log")
	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	e := New()
	err := e.Init(mode, "testapp", "testapp v1.2.3",
		WithLogPath(logPath),
		WithStreams(out, errBuf),
		WithoutSpinner(),
		WithoutLogCapture(),
	)
	require.NoError(t, err)
	return e, out, errBuf, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestEmitBeforeInitPanics(t *testing.T) {
	e := New()
	assert.PanicsWithError(t, "emitter usage error in Message: emitter must be initialized first", func() {
		e.Message("too early")
	})
	assert.Panics(t, func() { e.Progress("too early", false) })
	assert.Panics(t, func() { e.EndedOK() })
}

func TestInitTwicePanics(t *testing.T) {
	e, _, _, _ := newTestEmitter(t, Brief)
	defer e.EndedOK()
	assert.Panics(t, func() {
		_ = e.Init(Brief, "testapp", "again")
	})
}

func TestEmitAfterStopPanics(t *testing.T) {
	e, _, _, _ := newTestEmitter(t, Brief)
	e.EndedOK()
	assert.Panics(t, func() { e.Message("too late") })
	assert.Panics(t, func() { e.EndedOK() })
}

func TestMessageShownAndLogged(t *testing.T) {
	e, out, _, logPath := newTestEmitter(t, Brief)
	e.Message("done, all good")
	e.EndedOK()

	assert.Contains(t, out.String(), "done, all good")
	assert.Contains(t, readLog(t, logPath), "done, all good")
}

func TestMessageHiddenAtQuietButLogged(t *testing.T) {
	e, out, errBuf, logPath := newTestEmitter(t, Quiet)
	e.Message("quiet result")
	e.EndedOK()

	assert.NotContains(t, out.String(), "quiet result")
	assert.NotContains(t, errBuf.String(), "quiet result")
	assert.Contains(t, readLog(t, logPath), "quiet result")
}

func TestGreetingLoggedButNotShownAtBrief(t *testing.T) {
	e, out, errBuf, logPath := newTestEmitter(t, Brief)
	e.EndedOK()

	assert.NotContains(t, out.String(), "testapp v1.2.3")
	assert.NotContains(t, errBuf.String(), "testapp v1.2.3")
	assert.Contains(t, readLog(t, logPath), "testapp v1.2.3")
}

func TestGreetingShownOnceOnEscalation(t *testing.T) {
	e, _, errBuf, logPath := newTestEmitter(t, Brief)
	e.SetMode(Verbose)
	e.SetMode(Verbose)
	e.SetMode(Trace)
	e.SetMode(Brief)
	e.SetMode(Debug)
	e.EndedOK()

	got := errBuf.String()
	assert.Equal(t, 1, strings.Count(got, "testapp v1.2.3"),
		"exactly one greeting line may ever reach the screen")
	assert.Equal(t, 1, strings.Count(got, "Logging execution to"))
	assert.Contains(t, got, logPath)
}

func TestGreetingShownImmediatelyAtVerboseInit(t *testing.T) {
	e, _, errBuf, _ := newTestEmitter(t, Verbose)
	e.EndedOK()
	assert.Equal(t, 1, strings.Count(errBuf.String(), "testapp v1.2.3"))
}

func TestProgressVisibility(t *testing.T) {
	t.Run("hidden at quiet", func(t *testing.T) {
		e, _, errBuf, logPath := newTestEmitter(t, Quiet)
		e.Progress("stage one", false)
		e.EndedOK()
		assert.NotContains(t, errBuf.String(), "stage one")
		assert.Contains(t, readLog(t, logPath), "stage one")
	})

	t.Run("shown at brief", func(t *testing.T) {
		e, _, errBuf, _ := newTestEmitter(t, Brief)
		e.Progress("stage one", false)
		e.Progress("stage two", true)
		e.EndedOK()
		assert.Contains(t, errBuf.String(), "stage one")
		assert.Contains(t, errBuf.String(), "stage two")
	})

	t.Run("timestamped at debug", func(t *testing.T) {
		e, _, errBuf, _ := newTestEmitter(t, Debug)
		e.Progress("stage one", false)
		e.EndedOK()
		var line string
		for _, l := range strings.Split(errBuf.String(), "\n") {
			if strings.Contains(l, "stage one") {
				line = l
				break
			}
		}
		require.NotEmpty(t, line)
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3} stage one$`, line)
	})
}

func TestVerboseDebugTraceVisibility(t *testing.T) {
	tests := []struct {
		mode        Mode
		showVerbose bool
		showDebug   bool
		showTrace   bool
	}{
		{Brief, false, false, false},
		{Verbose, true, false, false},
		{Debug, true, true, false},
		{Trace, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			e, _, errBuf, _ := newTestEmitter(t, tt.mode)
			e.Verbose("a verbose record")
			e.Debug("a debug record")
			e.Trace("a trace record")
			e.EndedOK()

			got := errBuf.String()
			assert.Equal(t, tt.showVerbose, strings.Contains(got, "a verbose record"))
			assert.Equal(t, tt.showDebug, strings.Contains(got, "a debug record"))
			assert.Equal(t, tt.showTrace, strings.Contains(got, "a trace record"))
		})
	}
}

func TestTraceNotLoggedBelowTrace(t *testing.T) {
	e, _, _, logPath := newTestEmitter(t, Debug)
	e.Trace("developer noise")
	e.EndedOK()
	assert.NotContains(t, readLog(t, logPath), "developer noise")

	e2, _, _, logPath2 := newTestEmitter(t, Trace)
	e2.Trace("developer noise")
	e2.EndedOK()
	assert.Contains(t, readLog(t, logPath2), "developer noise")
}

func TestProgressBarDelta(t *testing.T) {
	e, _, errBuf, logPath := newTestEmitter(t, Brief)
	bar := e.ProgressBar("downloading stuff", 100, true)
	bar.Advance(40)
	bar.Advance(40)
	bar.Advance(20)
	bar.Done()
	e.EndedOK()

	got := errBuf.String()
	assert.Equal(t, 1, strings.Count(got, "downloading stuff (100%)"),
		"exactly one completion line")

	log := readLog(t, logPath)
	assert.Contains(t, log, "downloading stuff", "label line must be logged")
	assert.NotContains(t, log, "(100%)", "bar output must not be logged")
}

func TestProgressBarAbsolute(t *testing.T) {
	e, _, errBuf, _ := newTestEmitter(t, Brief)
	bar := e.ProgressBar("copying", 100, false)
	bar.Advance(30)
	bar.Advance(100)
	bar.Done()
	e.EndedOK()

	assert.Equal(t, 1, strings.Count(errBuf.String(), "copying (100%)"))
}

func TestProgressBarClampsBeyondTotal(t *testing.T) {
	e, _, errBuf, _ := newTestEmitter(t, Brief)
	bar := e.ProgressBar("chatty", 100, true)
	assert.NotPanics(t, func() {
		bar.Advance(80)
		bar.Advance(80)
	})
	bar.Done()
	e.EndedOK()
	assert.Equal(t, 1, strings.Count(errBuf.String(), "chatty (100%)"))
}

func TestProgressBarDoneIsIdempotent(t *testing.T) {
	e, _, errBuf, _ := newTestEmitter(t, Brief)
	bar := e.ProgressBar("idem", 10, true)
	bar.Advance(10)
	bar.Done()
	bar.Done()
	e.EndedOK()
	assert.Equal(t, 1, strings.Count(errBuf.String(), "idem (100%)"))
}

func TestProgressBarUsageErrors(t *testing.T) {
	e, _, _, _ := newTestEmitter(t, Brief)
	defer e.EndedOK()

	assert.Panics(t, func() { e.ProgressBar("bad", 0, true) })
	assert.Panics(t, func() { e.ProgressBar("bad", -5, true) })

	bar := e.ProgressBar("ok", 10, true)
	assert.Panics(t, func() { bar.Advance(-1) })
	bar.Done()
}

func TestProgressBarFractionalTotal(t *testing.T) {
	e, _, errBuf, _ := newTestEmitter(t, Brief)
	bar := e.ProgressBar("bytes", 3.5, true)
	bar.Advance(1.75)
	bar.Advance(1.75)
	bar.Done()
	e.EndedOK()
	assert.Equal(t, 1, strings.Count(errBuf.String(), "bytes (100%)"))
}

func TestOpenStreamSplitsLinesAcrossChunks(t *testing.T) {
	e, _, _, logPath := newTestEmitter(t, Trace)

	stream, err := e.OpenStream("update")
	require.NoError(t, err)

	// "a\nb\nc" written across awkward chunk boundaries, no final newline
	_, err = stream.Write([]byte("a\nb"))
	require.NoError(t, err)
	_, err = stream.Write([]byte("\nc"))
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	e.EndedOK()

	log := readLog(t, logPath)
	assert.Equal(t, 3, strings.Count(log, "update :: "))
	ia := strings.Index(log, "update :: a")
	ib := strings.Index(log, "update :: b")
	ic := strings.Index(log, "update :: c")
	require.NotEqual(t, -1, ia)
	require.NotEqual(t, -1, ib)
	require.NotEqual(t, -1, ic)
	assert.Less(t, ia, ib)
	assert.Less(t, ib, ic)
}

func TestOpenStreamCloseIsIdempotentAndDrains(t *testing.T) {
	e, _, _, logPath := newTestEmitter(t, Trace)

	stream, err := e.OpenStream("drain")
	require.NoError(t, err)
	_, err = stream.Write([]byte("last words with no newline"))
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())
	e.EndedOK()

	assert.Contains(t, readLog(t, logPath), "drain :: last words with no newline")
}

func TestOpenStreamLabelLoggedBelowTrace(t *testing.T) {
	e, _, _, logPath := newTestEmitter(t, Brief)

	stream, err := e.OpenStream("quiet update")
	require.NoError(t, err)
	_, err = stream.Write([]byte("hidden line\n"))
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	e.EndedOK()

	log := readLog(t, logPath)
	assert.Contains(t, log, "quiet update", "the label line is always logged")
	assert.NotContains(t, log, "hidden line", "stream lines are trace records, not logged below Trace")
}

func TestPauseDropsEmissions(t *testing.T) {
	e, out, errBuf, logPath := newTestEmitter(t, Brief)

	e.Message("before pause")
	resume := e.Pause()
	e.Message("while paused")
	e.Progress("also paused", false)
	resume()
	resume() // resume is idempotent
	e.Message("after pause")
	e.EndedOK()

	screen := out.String() + errBuf.String()
	assert.Contains(t, screen, "before pause")
	assert.NotContains(t, screen, "while paused")
	assert.NotContains(t, screen, "also paused")
	assert.Contains(t, screen, "after pause")

	log := readLog(t, logPath)
	assert.NotContains(t, log, "while paused", "paused records are dropped from the log too")
	assert.Contains(t, log, "after pause")
}

func TestPauseTwicePanics(t *testing.T) {
	e, _, _, _ := newTestEmitter(t, Brief)
	resume := e.Pause()
	defer func() {
		resume()
		e.EndedOK()
	}()
	assert.Panics(t, func() { e.Pause() })
}

func TestErrorRenderingAtBrief(t *testing.T) {
	e, _, errBuf, logPath := newTestEmitter(t, Brief)
	e.Error(&Error{
		Message:    "something went badly",
		Details:    "the gory internals",
		Resolution: "try turning it off and on again",
		DocsURL:    "https://example.com/docs",
	})

	got := errBuf.String()
	assert.Equal(t, 1, strings.Count(got, "something went badly"))
	assert.NotContains(t, got, "the gory internals", "details are debug/trace only")
	assert.Contains(t, got, "Recommended resolution: try turning it off and on again")
	assert.Contains(t, got, "For more information, check out: https://example.com/docs")
	assert.Contains(t, got, "Full execution log:")
	assert.Contains(t, got, logPath)

	log := readLog(t, logPath)
	assert.Contains(t, log, "something went badly")
	assert.Contains(t, log, "the gory internals", "details are always logged")

	// an error report ends the run
	assert.Panics(t, func() { e.Message("after the end") })
}

func TestErrorRenderingAtDebug(t *testing.T) {
	e, _, errBuf, _ := newTestEmitter(t, Debug)
	e.Error(&Error{
		Message: "something went badly",
		Details: "the gory internals",
		Err:     os.ErrPermission,
	})

	got := errBuf.String()
	assert.Contains(t, got, "Detailed information: the gory internals")
	assert.Contains(t, got, "Caused by:")
	assert.NotContains(t, got, "Full execution log:",
		"debug mode already surfaced enough, no log pointer needed")
}

func TestErrorShownEvenAtQuiet(t *testing.T) {
	e, _, errBuf, _ := newTestEmitter(t, Quiet)
	e.Error(NewError("it broke"))
	assert.Contains(t, errBuf.String(), "it broke")
}

func TestSecretsMasked(t *testing.T) {
	e, out, _, logPath := newTestEmitter(t, Brief)
	e.SetSecrets([]string{"s3cr3t"})
	e.Message("token is s3cr3t ok")
	e.EndedOK()

	assert.NotContains(t, out.String(), "s3cr3t")
	assert.Contains(t, out.String(), "*****")
	assert.NotContains(t, readLog(t, logPath), "s3cr3t")
}

func TestLogPathAccessor(t *testing.T) {
	e, _, _, logPath := newTestEmitter(t, Brief)
	defer e.EndedOK()
	assert.Equal(t, logPath, e.LogPath())
}

func TestModeAccessor(t *testing.T) {
	e, _, _, _ := newTestEmitter(t, Brief)
	defer e.EndedOK()
	assert.Equal(t, Brief, e.Mode())
	e.SetMode(Quiet)
	assert.Equal(t, Quiet, e.Mode())
}
