package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/doctranslate/internal/errors"
	"github.com/adverant/nexus/doctranslate/internal/ocr"
)

type stubOCR struct {
	blocks []ocr.TextBlock
	err    error
	block  bool
	calls  int32
	seen   []byte
}

func (s *stubOCR) Detect(ctx context.Context, filename string, data []byte) ([]ocr.TextBlock, error) {
	atomic.AddInt32(&s.calls, 1)
	s.seen = data
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.blocks, s.err
}

type spyTranslator struct {
	calls     int32
	lastLines []string
	translate func(lines []string) []string
	err       error
}

func (s *spyTranslator) Translate(ctx context.Context, lines []string, targetLang, sourceLang string) ([]string, error) {
	atomic.AddInt32(&s.calls, 1)
	s.lastLines = lines
	if s.err != nil {
		return nil, s.err
	}
	return s.translate(lines), nil
}

func echo(lines []string) []string {
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

func newTestOrchestrator(t *testing.T, o OCRProvider, tr TranslationProvider, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.UploadDir == "" {
		cfg.UploadDir = t.TempDir()
	}
	orch, err := NewOrchestrator(o, tr, cfg)
	require.NoError(t, err)
	return orch
}

func request(body string) *ProcessRequest {
	return &ProcessRequest{
		Filename:   "scan.png",
		Body:       strings.NewReader(body),
		TargetLang: "zh",
		SourceLang: "auto",
	}
}

func TestProcessConcreteScenario(t *testing.T) {
	ocrStub := &stubOCR{blocks: []ocr.TextBlock{
		{Text: "Hello", BBox: ocr.BBox{0, 0, 50, 20}, Confidence: 0.9},
		{Text: "  ", BBox: ocr.BBox{0, 30, 50, 50}, Confidence: 0.8},
	}}
	tr := &spyTranslator{translate: func(lines []string) []string { return []string{"你好"} }}
	orch := newTestOrchestrator(t, ocrStub, tr, Config{})

	result, err := orch.Process(context.Background(), request("png-bytes"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello"}, tr.lastLines)
	assert.Equal(t, 1, result.LineCount)
	assert.False(t, result.Partial)
	assert.Equal(t, []TranslationItem{
		{BBox: ocr.BBox{0, 0, 50, 20}, Src: "Hello", Tgt: "你好", Confidence: 0.9},
	}, result.Items)

	_, err = uuid.Parse(result.ImageID)
	assert.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), ocrStub.seen)
	assert.GreaterOrEqual(t, result.ProcessingTimeMs, int64(0))
}

func TestProcessZeroBlocksSkipsTranslation(t *testing.T) {
	for _, blocks := range [][]ocr.TextBlock{nil, {{Text: "   "}, {Text: "\n\t"}}} {
		tr := &spyTranslator{translate: echo}
		orch := newTestOrchestrator(t, &stubOCR{blocks: blocks}, tr, Config{})

		result, err := orch.Process(context.Background(), request("img"))
		require.NoError(t, err)

		assert.Equal(t, 0, result.LineCount)
		assert.NotNil(t, result.Items)
		assert.Empty(t, result.Items)
		assert.EqualValues(t, 0, atomic.LoadInt32(&tr.calls))
	}
}

func TestProcessEchoPreservesBoxes(t *testing.T) {
	blocks := []ocr.TextBlock{
		{Text: "one", BBox: ocr.BBox{1, 1, 2, 2}, Confidence: 0.5},
		{Text: "two", BBox: ocr.BBox{3, 3, 4, 4}, Confidence: 0.6},
		{Text: "three", BBox: ocr.BBox{5, 5, 6, 6}, Confidence: 0.7},
	}
	orch := newTestOrchestrator(t, &stubOCR{blocks: blocks}, &spyTranslator{translate: echo}, Config{})

	result, err := orch.Process(context.Background(), request("img"))
	require.NoError(t, err)

	require.Len(t, result.Items, len(blocks))
	for i, item := range result.Items {
		assert.Equal(t, item.Src, item.Tgt)
		assert.Equal(t, blocks[i].BBox, item.BBox)
		assert.Equal(t, blocks[i].Confidence, item.Confidence)
	}
}

func TestProcessPermutationPermutesItems(t *testing.T) {
	a := ocr.TextBlock{Text: "a", BBox: ocr.BBox{0, 0, 1, 1}, Confidence: 0.9}
	b := ocr.TextBlock{Text: "b", BBox: ocr.BBox{0, 2, 1, 3}, Confidence: 0.9}
	c := ocr.TextBlock{Text: "c", BBox: ocr.BBox{0, 4, 1, 5}, Confidence: 0.9}
	upper := func(lines []string) []string {
		out := make([]string, len(lines))
		for i, l := range lines {
			out[i] = strings.ToUpper(l)
		}
		return out
	}

	run := func(blocks []ocr.TextBlock) []TranslationItem {
		orch := newTestOrchestrator(t, &stubOCR{blocks: blocks}, &spyTranslator{translate: upper}, Config{})
		result, err := orch.Process(context.Background(), request("img"))
		require.NoError(t, err)
		return result.Items
	}

	forward := run([]ocr.TextBlock{a, b, c})
	permuted := run([]ocr.TextBlock{c, a, b})

	assert.Equal(t, []TranslationItem{forward[2], forward[0], forward[1]}, permuted)
}

func TestProcessShortTranslationIsPartial(t *testing.T) {
	blocks := []ocr.TextBlock{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	short := func(lines []string) []string { return echo(lines)[:len(lines)-1] }
	orch := newTestOrchestrator(t, &stubOCR{blocks: blocks}, &spyTranslator{translate: short}, Config{})

	result, err := orch.Process(context.Background(), request("img"))
	require.NoError(t, err)

	assert.Len(t, result.Items, 2)
	assert.Equal(t, 2, result.LineCount)
	assert.True(t, result.Partial)
	assert.Contains(t, result.Warning, "2 results for 3 inputs")
}

func TestProcessOCRTimeoutNeverTranslates(t *testing.T) {
	ocrStub := &stubOCR{block: true}
	tr := &spyTranslator{translate: echo}
	orch := newTestOrchestrator(t, ocrStub, tr, Config{OCRTimeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := orch.Process(context.Background(), request("img"))
	require.Error(t, err)

	pe, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorUpstreamTimeout, pe.Code)
	assert.Equal(t, ServiceOCR, pe.Service)
	assert.EqualValues(t, 0, atomic.LoadInt32(&tr.calls))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestProcessCancelledBeforeOCRReturns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ocrStub := &stubOCR{block: true}
	tr := &spyTranslator{translate: echo}
	orch := newTestOrchestrator(t, ocrStub, tr, Config{})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := orch.Process(ctx, request("img"))
	require.Error(t, err)
	assert.EqualValues(t, 0, atomic.LoadInt32(&tr.calls))
}

func TestProcessUpstreamFailures(t *testing.T) {
	t.Run("ocr unavailable", func(t *testing.T) {
		tr := &spyTranslator{translate: echo}
		orch := newTestOrchestrator(t, &stubOCR{err: fmt.Errorf("dial tcp: connection refused")}, tr, Config{})

		_, err := orch.Process(context.Background(), request("img"))
		pe, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrorUpstreamUnavailable, pe.Code)
		assert.Equal(t, ServiceOCR, pe.Service)
		assert.EqualValues(t, 0, atomic.LoadInt32(&tr.calls))
	})

	t.Run("typed translation failure passes through", func(t *testing.T) {
		upstream := errors.NewUpstreamStatusError(ServiceTranslation, 503, "down")
		tr := &spyTranslator{err: upstream}
		orch := newTestOrchestrator(t, &stubOCR{blocks: []ocr.TextBlock{{Text: "x"}}}, tr, Config{})

		_, err := orch.Process(context.Background(), request("img"))
		assert.Same(t, upstream, err)
	})

	t.Run("translation deadline", func(t *testing.T) {
		tr := &spyTranslator{err: context.DeadlineExceeded}
		orch := newTestOrchestrator(t, &stubOCR{blocks: []ocr.TextBlock{{Text: "x"}}}, tr, Config{})

		_, err := orch.Process(context.Background(), request("img"))
		pe, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrorUpstreamTimeout, pe.Code)
		assert.Equal(t, ServiceTranslation, pe.Service)
	})
}

func TestProcessRejectsBadUploads(t *testing.T) {
	ocrStub := &stubOCR{}
	orch := newTestOrchestrator(t, ocrStub, &spyTranslator{translate: echo}, Config{MaxUploadSize: 4})

	_, err := orch.Process(context.Background(), request(""))
	assert.True(t, errors.HasCode(err, errors.ErrorClientInput))

	_, err = orch.Process(context.Background(), &ProcessRequest{Filename: "x.png"})
	assert.True(t, errors.HasCode(err, errors.ErrorClientInput))

	_, err = orch.Process(context.Background(), request("too large"))
	assert.True(t, errors.HasCode(err, errors.ErrorFileTooLarge))

	assert.EqualValues(t, 0, atomic.LoadInt32(&ocrStub.calls))
}

func TestProcessRemovesTemporaryUpload(t *testing.T) {
	dir := t.TempDir()
	orch := newTestOrchestrator(t, &stubOCR{err: fmt.Errorf("boom")}, &spyTranslator{translate: echo}, Config{UploadDir: dir})

	_, _ = orch.Process(context.Background(), request("img"))

	orch = newTestOrchestrator(t, &stubOCR{blocks: []ocr.TextBlock{{Text: "a"}}}, &spyTranslator{translate: echo}, Config{UploadDir: dir})
	_, err := orch.Process(context.Background(), request("img"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "scan.png", SanitizeFilename("scan.png"))
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "evil.png", SanitizeFilename(`C:\temp\evil.png`))
	assert.Equal(t, "my_scan__1_.jpg", SanitizeFilename("my scan (1).jpg"))
	assert.Equal(t, "upload", SanitizeFilename(""))
	assert.Equal(t, "upload", SanitizeFilename(".."))
}
