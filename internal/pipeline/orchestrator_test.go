package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"devourer/internal/artifacts"
	"devourer/internal/fetch"
	"devourer/internal/journal"
	"devourer/internal/logging"
	"devourer/internal/metadata"
	"devourer/internal/ratelimit"
	"devourer/internal/reference"
	"devourer/internal/services"
	"devourer/internal/services/ffmpeg"
	"devourer/internal/services/provider"
	"devourer/internal/services/vsub"
	"devourer/internal/testsupport"
)

type fakeProvider struct {
	mu             sync.Mutex
	metadataCalls  int
	mediaListCalls int
	docs           map[string]*metadata.Document
	lists          map[string][]provider.MediaDescriptor
	errFor         map[string]error
}

func (f *fakeProvider) FetchMetadata(ctx context.Context, ref reference.Reference) (*metadata.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadataCalls++
	if err := f.errFor[ref.Code]; err != nil {
		return nil, err
	}
	doc, ok := f.docs[ref.Code]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "provider", "request", ref.String(), nil)
	}
	copied := *doc
	copied.Kind = string(ref.Kind)
	copied.Code = ref.Code
	return &copied, nil
}

func (f *fakeProvider) FetchMediaList(ctx context.Context, ref reference.Reference) ([]provider.MediaDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mediaListCalls++
	if err := f.errFor[ref.Code]; err != nil {
		return nil, err
	}
	return f.lists[ref.Code], nil
}

func (f *fakeProvider) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metadataCalls, f.mediaListCalls
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []journal.ItemRecord
}

func (r *memoryRecorder) RecordItem(ctx context.Context, rec journal.ItemRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

type harness struct {
	store      *artifacts.Store
	provider   *fakeProvider
	server     *httptest.Server
	hitsMu     sync.Mutex
	hits       map[string]int
	limiter    *ratelimit.Limiter
	recorder   *memoryRecorder
	ffmpegRuns int
	vsubRuns   int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)

	h := &harness{
		store:    artifacts.NewStore(cfg.Paths.StorageDir),
		provider: &fakeProvider{docs: map[string]*metadata.Document{}, lists: map[string][]provider.MediaDescriptor{}, errFor: map[string]error{}},
		hits:     map[string]int{},
		recorder: &memoryRecorder{},
		limiter: ratelimit.New(ratelimit.Interval{}, ratelimit.Interval{},
			ratelimit.WithSleepFunc(func(ctx context.Context, d time.Duration) error {
				return nil
			})),
	}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.hitsMu.Lock()
		h.hits[r.URL.Path]++
		h.hitsMu.Unlock()
		_, _ = w.Write([]byte("payload-" + r.URL.Path))
	}))
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) hitCount(path string) int {
	h.hitsMu.Lock()
	defer h.hitsMu.Unlock()
	return h.hits[path]
}

func (h *harness) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	logger := logging.NewNop()
	downloader := fetch.NewDownloader(h.server.Client())

	extractor := ffmpeg.NewExtractor("ffmpeg")
	extractor.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		h.ffmpegRuns++
		dest := args[len(args)-1]
		return os.WriteFile(dest, []byte("audio"), 0o644)
	})

	transcriber := vsub.NewService(vsub.Config{Binary: "vsub"})
	transcriber.WithCommandRunner(func(ctx context.Context, name string, args ...string) (string, string, error) {
		h.vsubRuns++
		var transcript, subtitle string
		for i, arg := range args {
			if arg == "-t" && i+1 < len(args) {
				transcript = args[i+1]
			}
			if arg == "-s" && i+1 < len(args) {
				subtitle = args[i+1]
			}
		}
		if err := os.WriteFile(transcript, []byte("text"), 0o644); err != nil {
			return "", "", err
		}
		if err := os.WriteFile(subtitle, []byte("1\n00:00:00,000 --> 00:00:01,000\ntext\n"), 0o644); err != nil {
			return "", "", err
		}
		return "transcribed", "", nil
	})

	stages := StageSet{
		Metadata:   NewMetadataFetch(h.store, h.provider, logger),
		Media:      NewMediaDownload(h.store, h.provider, downloader, 2, logger),
		Preview:    NewPreviewFetch(h.store, downloader, logger),
		Audio:      NewAudioExtract(h.store, extractor, logger),
		Transcribe: NewTranscribe(h.store, transcriber, logger),
	}
	return NewOrchestrator(stages, h.limiter, logger, h.recorder)
}

func (h *harness) addClip(code string, previews ...metadata.Preview) reference.Reference {
	h.provider.docs[code] = &metadata.Document{
		Videos:   []metadata.Media{{URL: h.server.URL + "/video/" + code, ContentType: "video/mp4"}},
		Previews: previews,
	}
	return reference.Reference{Kind: reference.KindClip, Code: code}
}

func (h *harness) addPost(code string, mediaCount int) reference.Reference {
	h.provider.docs[code] = &metadata.Document{Author: "author-" + code}
	var list []provider.MediaDescriptor
	for i := 0; i < mediaCount; i++ {
		ct := "image/jpeg"
		if i%2 == 1 {
			ct = "video/mp4"
		}
		list = append(list, provider.MediaDescriptor{
			URL:         h.server.URL + "/post/" + code + "/" + string(rune('a'+i)),
			ContentType: ct,
		})
	}
	h.provider.lists[code] = list
	return reference.Reference{Kind: reference.KindPost, Code: code}
}

func TestClipRunsAllStages(t *testing.T) {
	h := newHarness(t)
	ref := h.addClip("clip1", metadata.Preview{URL: h.server.URL + "/preview/clip1", Width: 720})
	o := h.orchestrator(t)

	summary, err := o.Run(context.Background(), []reference.Reference{ref})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, stage := range []artifacts.Stage{
		artifacts.StageMetadata, artifacts.StageMedia, artifacts.StagePreview,
		artifacts.StageAudio, artifacts.StageTranscript, artifacts.StageSubtitle,
	} {
		if !h.store.Exists(ref.Kind, ref.Code, stage) {
			t.Fatalf("artifact %s missing after run", stage)
		}
	}
	if h.limiter.WaitCount() != 1 {
		t.Fatalf("wait count = %d, want 1", h.limiter.WaitCount())
	}
}

func TestSecondRunIsFreeOfQuotaCallsAndWaits(t *testing.T) {
	h := newHarness(t)
	ref := h.addClip("clip1")
	o := h.orchestrator(t)

	if _, err := o.Run(context.Background(), []reference.Reference{ref}); err != nil {
		t.Fatal(err)
	}
	metaBefore, listBefore := h.provider.calls()
	waitsBefore := h.limiter.WaitCount()

	summary, err := h.orchestrator(t).Run(context.Background(), []reference.Reference{ref})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || summary.Processed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	metaAfter, listAfter := h.provider.calls()
	if metaAfter != metaBefore || listAfter != listBefore {
		t.Fatalf("second run performed provider calls: %d/%d -> %d/%d", metaBefore, listBefore, metaAfter, listAfter)
	}
	if h.limiter.WaitCount() != waitsBefore {
		t.Fatalf("second run waited: %d -> %d", waitsBefore, h.limiter.WaitCount())
	}
}

func TestResumabilityRunsOnlyMissingStages(t *testing.T) {
	h := newHarness(t)
	ref := h.addClip("clip1")
	o := h.orchestrator(t)

	// An interrupted earlier run left metadata and media behind.
	if _, err := h.store.WriteDocument(ref, &metadata.Document{Kind: "clip", Code: ref.Code}); err != nil {
		t.Fatal(err)
	}
	mediaPath := h.store.Path(ref.Kind, ref.Code, artifacts.StageMedia)
	testsupport.WriteFile(t, mediaPath, 64)
	before, err := os.Stat(mediaPath)
	if err != nil {
		t.Fatal(err)
	}

	summary, runErr := o.Run(context.Background(), []reference.Reference{ref})
	if runErr != nil {
		t.Fatal(runErr)
	}
	if summary.Processed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	meta, list := h.provider.calls()
	if meta != 0 || list != 0 {
		t.Fatalf("resume run hit the provider: %d/%d", meta, list)
	}
	if h.ffmpegRuns != 1 || h.vsubRuns != 1 {
		t.Fatalf("expected audio+transcribe only, got ffmpeg=%d vsub=%d", h.ffmpegRuns, h.vsubRuns)
	}
	after, err := os.Stat(mediaPath)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) || after.Size() != before.Size() {
		t.Fatal("media artifact was rewritten")
	}
	if h.limiter.WaitCount() != 0 {
		t.Fatalf("resume run should not wait, got %d", h.limiter.WaitCount())
	}
}

func TestItemFailureIsolation(t *testing.T) {
	h := newHarness(t)
	bad := h.addClip("bad")
	good := h.addClip("good")
	h.provider.errFor["bad"] = services.Wrap(services.ErrTransient, "provider", "request", "bad", errors.New("boom"))
	o := h.orchestrator(t)

	summary, err := o.Run(context.Background(), []reference.Reference{bad, good})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 || summary.Processed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !h.store.Exists(good.Kind, good.Code, artifacts.StageMedia) {
		t.Fatal("later item was not processed after earlier failure")
	}
	if h.store.Exists(bad.Kind, bad.Code, artifacts.StageMetadata) {
		t.Fatal("failed item must not leave a metadata artifact")
	}
	// The failed fetch still consumed quota, so both items pace.
	if h.limiter.WaitCount() != 2 {
		t.Fatalf("wait count = %d, want 2", h.limiter.WaitCount())
	}
}

func TestExternalToolFailureIsNonFatal(t *testing.T) {
	h := newHarness(t)
	ref := h.addClip("clip1")
	o := h.orchestrator(t)

	broken := vsub.NewService(vsub.Config{Binary: "vsub"})
	broken.WithCommandRunner(func(ctx context.Context, name string, args ...string) (string, string, error) {
		return "", "model exploded", errors.New("exit status 2")
	})
	o.stages.Transcribe = NewTranscribe(h.store, broken, logging.NewNop())

	summary, err := o.Run(context.Background(), []reference.Reference{ref})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 || summary.Failed != 0 {
		t.Fatalf("tool failure must not fail the item: %+v", summary)
	}
	if summary.Warnings == 0 {
		t.Fatal("expected a recorded stage warning")
	}
	if h.store.Exists(ref.Kind, ref.Code, artifacts.StageTranscript) {
		t.Fatal("transcript must stay absent for a future run")
	}
	if !h.store.Exists(ref.Kind, ref.Code, artifacts.StageAudio) {
		t.Fatal("audio stage should have completed")
	}
}

func TestPostDownloadsAllSiblings(t *testing.T) {
	h := newHarness(t)
	ref := h.addPost("post1", 3)
	o := h.orchestrator(t)

	summary, err := o.Run(context.Background(), []reference.Reference{ref})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	wantFiles := []string{
		h.store.PostMediaPath("post1", 1, "image/jpeg"),
		h.store.PostMediaPath("post1", 2, "video/mp4"),
		h.store.PostMediaPath("post1", 3, "image/jpeg"),
	}
	for _, path := range wantFiles {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing post media %s: %v", path, err)
		}
	}
	if !h.store.Exists(ref.Kind, ref.Code, artifacts.StageMetadata) {
		t.Fatal("post metadata missing")
	}
	if !h.store.Exists(ref.Kind, ref.Code, artifacts.StageMedia) {
		t.Fatal("post media stage should report present")
	}
}

func TestEmptyPostDoesNotRefetchOnRerun(t *testing.T) {
	h := newHarness(t)
	ref := h.addPost("post0", 0)

	summary, err := h.orchestrator(t).Run(context.Background(), []reference.Reference{ref})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("unexpected first summary: %+v", summary)
	}
	if !h.store.Exists(ref.Kind, ref.Code, artifacts.StageMedia) {
		t.Fatal("empty media list must still complete the media stage")
	}
	metaBefore, listBefore := h.provider.calls()

	summary, err = h.orchestrator(t).Run(context.Background(), []reference.Reference{ref})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Skipped != 1 || summary.Processed != 0 {
		t.Fatalf("unexpected second summary: %+v", summary)
	}
	metaAfter, listAfter := h.provider.calls()
	if metaAfter != metaBefore || listAfter != listBefore {
		t.Fatalf("second run performed provider calls: %d/%d -> %d/%d", metaBefore, listBefore, metaAfter, listAfter)
	}
	if h.limiter.WaitCount() != 1 {
		t.Fatalf("second run waited: count = %d, want 1", h.limiter.WaitCount())
	}
}

func TestPreviewFetchesOnlyWidestCandidate(t *testing.T) {
	h := newHarness(t)
	ref := h.addClip("clip1",
		metadata.Preview{URL: h.server.URL + "/preview/480", Width: 480},
		metadata.Preview{URL: h.server.URL + "/preview/720", Width: 720},
		metadata.Preview{URL: h.server.URL + "/preview/1080", Width: 1080},
	)
	o := h.orchestrator(t)

	if _, err := o.Run(context.Background(), []reference.Reference{ref}); err != nil {
		t.Fatal(err)
	}
	if h.hitCount("/preview/1080") != 1 {
		t.Fatal("widest preview was not fetched")
	}
	for _, path := range []string{"/preview/480", "/preview/720"} {
		if h.hitCount(path) != 0 {
			t.Fatalf("unexpected fetch of %s", path)
		}
	}
}

func TestJournalRecordsOutcomes(t *testing.T) {
	h := newHarness(t)
	ref := h.addClip("clip1")

	if _, err := h.orchestrator(t).Run(context.Background(), []reference.Reference{ref}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.orchestrator(t).Run(context.Background(), []reference.Reference{ref}); err != nil {
		t.Fatal(err)
	}

	if len(h.recorder.records) != 2 {
		t.Fatalf("expected 2 journal records, got %d", len(h.recorder.records))
	}
	first, second := h.recorder.records[0], h.recorder.records[1]
	if first.Status != journal.StatusDone || !first.HitQuota {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if !strings.Contains(strings.Join(first.Stages, ","), StageMetadataFetch) {
		t.Fatalf("first record missing stages: %+v", first.Stages)
	}
	if second.Status != journal.StatusSkipped || second.HitQuota || len(second.Stages) != 0 {
		t.Fatalf("unexpected second record: %+v", second)
	}
	if first.RunID == second.RunID {
		t.Fatal("distinct passes must carry distinct run IDs")
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	h := newHarness(t)
	refs := []reference.Reference{h.addClip("clip1"), h.addClip("clip2")}
	o := h.orchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Run(ctx, refs); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
