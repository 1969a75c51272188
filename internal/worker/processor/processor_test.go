package processor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"montage/internal/adapters/storage/localfs"
	"montage/internal/fetch"
	"montage/internal/ffmpeg"
	"montage/internal/jobs"
	"montage/internal/models"
	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
)

// fakeRunner records stages and writes a placeholder output for each.
type fakeRunner struct {
	mu      sync.Mutex
	stages  []string
	files   map[string]string // stage name -> captured side file contents
	failOn  string
	block   chan struct{}
	started chan struct{}
	missing []string // inputs ffmpeg would not find from its working directory
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{files: make(map[string]string)}
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// resolve interprets p the way a process started in dir would.
func resolve(dir, p string) string {
	if filepath.IsAbs(p) || dir == "" {
		return p
	}
	return filepath.Join(dir, p)
}

// unresolvedInputs lists the -i arguments of st, and the entries of any
// concat list among them, that do not exist as seen from st.Dir.
func unresolvedInputs(st ffmpeg.Stage) []string {
	var out []string
	for i := 0; i < len(st.Args)-1; i++ {
		if st.Args[i] != "-i" {
			continue
		}
		in := resolve(st.Dir, st.Args[i+1])
		data, err := os.ReadFile(in)
		if err != nil {
			out = append(out, st.Name+": "+in)
			continue
		}
		if !strings.HasPrefix(string(data), "ffconcat") {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			if !strings.HasPrefix(line, "file '") {
				continue
			}
			entry := strings.ReplaceAll(strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'"), `'\''`, "'")
			entry = resolve(filepath.Dir(in), entry)
			if _, err := os.Stat(entry); err != nil {
				out = append(out, st.Name+": "+entry)
			}
		}
	}
	return out
}

func (f *fakeRunner) Run(ctx context.Context, st ffmpeg.Stage) error {
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	f.stages = append(f.stages, st.Name)
	f.missing = append(f.missing, unresolvedInputs(st)...)
	switch st.Name {
	case "compose-image-video", "prepend-intro":
		data, _ := os.ReadFile(argAfter(st.Args, "-i"))
		f.files[st.Name] = string(data)
	case "burn-subtitles":
		data, _ := os.ReadFile(resolve(st.Dir, "subs.srt"))
		f.files[st.Name] = string(data)
	}
	f.mu.Unlock()

	if st.Name == f.failOn {
		return errors.StageFailed(st.Name, fmt.Errorf("exit status 1"))
	}
	return os.WriteFile(resolve(st.Dir, st.Output), []byte(st.Name), 0o644)
}

func (f *fakeRunner) Missing() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.missing...)
}

func (f *fakeRunner) Stages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stages...)
}

func (f *fakeRunner) File(stage string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[stage]
}

type fixedProber float64

func (p fixedProber) Duration(ctx context.Context, path string) float64 { return float64(p) }

type recordingEvents struct {
	mu     sync.Mutex
	events map[string][]jobs.Job
}

func (r *recordingEvents) Publish(ctx context.Context, job jobs.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string][]jobs.Job)
	}
	r.events[job.ID] = append(r.events[job.ID], job)
	return nil
}

func (r *recordingEvents) Stages(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, j := range r.events[id] {
		out = append(out, string(j.Stage))
	}
	return out
}

type recordingHistory struct {
	mu   sync.Mutex
	recs []models.JobRecord
}

func (h *recordingHistory) Record(ctx context.Context, rec models.JobRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recs = append(h.recs, rec)
	return nil
}

type failingVerifier struct{}

func (failingVerifier) Verify(path string, width, height int) error {
	return errors.New(errors.CodeStage, "output is 1x1")
}

type env struct {
	proc     *Processor
	registry *jobs.Registry
	runner   *fakeRunner
	events   *recordingEvents
	history  *recordingHistory
	workRoot string
	storage  string
	hits     *atomic.Int32
	assets   *httptest.Server
}

func newEnv(t *testing.T, duration float64, mutate func(*Deps)) *env {
	t.Helper()

	hits := &atomic.Int32{}
	assets := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.Contains(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("asset:" + r.URL.Path))
	}))
	t.Cleanup(assets.Close)

	e := &env{
		registry: jobs.NewRegistry(),
		runner:   newFakeRunner(),
		events:   &recordingEvents{},
		history:  &recordingHistory{},
		workRoot: t.TempDir(),
		storage:  t.TempDir(),
		hits:     hits,
		assets:   assets,
	}

	d := Deps{
		Registry:          e.registry,
		Fetcher:           fetch.New(assets.Client(), 5*time.Second, "test-agent"),
		Prober:            fixedProber(duration),
		Runner:            e.runner,
		SP:                localfs.New(e.storage),
		Events:            e.events,
		History:           e.history,
		WorkRoot:          e.workRoot,
		MaxConcurrentJobs: 4,
		Log:               logger.Discard(),
	}
	if mutate != nil {
		mutate(&d)
	}

	proc, err := New(d)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = proc.Release(time.Second) })
	e.proc = proc
	return e
}

func (e *env) url(name string) string {
	return e.assets.URL + "/" + name
}

func (e *env) assertWorkRootEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(e.workRoot)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected working directories to be removed, found %d entries", len(entries))
	}
}

func TestThreeImagesNineSeconds(t *testing.T) {
	e := newEnv(t, 9, nil)

	id, err := e.proc.Submit(context.Background(), jobs.Request{
		ImageURLs: []string{e.url("a.png"), e.url("b.jpg"), e.url("c")},
		AudioURL:  e.url("voice.mp3"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	e.proc.Wait()

	job, ok := e.registry.Get(id)
	if !ok {
		t.Fatal("job not registered")
	}
	if job.Status != jobs.StatusDone {
		t.Fatalf("status = %s (%s), want done", job.Status, job.Error)
	}
	if job.Video != id+".mp4" {
		t.Errorf("video = %q, want %s.mp4", job.Video, id)
	}
	if _, err := os.Stat(filepath.Join(e.storage, job.Video)); err != nil {
		t.Errorf("expected output video in storage: %v", err)
	}

	list := e.runner.File("compose-image-video")
	if got := strings.Count(list, "duration 3.000"); got != 3 {
		t.Errorf("expected 3 slides of 3.000s, list was:\n%s", list)
	}

	wantStages := []string{
		"normalize-image", "normalize-image", "normalize-image",
		"normalize-audio", "compose-image-video", "merge-audio-video",
	}
	if got := e.runner.Stages(); strings.Join(got, ",") != strings.Join(wantStages, ",") {
		t.Errorf("stages = %v, want %v", got, wantStages)
	}

	var statuses []jobs.Status
	for _, j := range e.events.events[id] {
		if len(statuses) == 0 || statuses[len(statuses)-1] != j.Status {
			statuses = append(statuses, j.Status)
		}
	}
	if len(statuses) != 2 || statuses[0] != jobs.StatusProcessing || statuses[1] != jobs.StatusDone {
		t.Errorf("status transitions = %v, want [processing done]", statuses)
	}

	e.assertWorkRootEmpty(t)

	if len(e.history.recs) != 1 || e.history.recs[0].Status != "done" || e.history.recs[0].ImageCount != 3 {
		t.Errorf("history = %+v", e.history.recs)
	}
}

func TestAudioFetchFailure(t *testing.T) {
	e := newEnv(t, 9, nil)
	audioURL := e.url("missing-voice.mp3")

	id, err := e.proc.Submit(context.Background(), jobs.Request{
		ImageURLs: []string{e.url("a.jpg")},
		AudioURL:  audioURL,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	e.proc.Wait()

	job, _ := e.registry.Get(id)
	if job.Status != jobs.StatusError {
		t.Fatalf("status = %s, want error", job.Status)
	}
	if !strings.Contains(job.Error, audioURL) {
		t.Errorf("error %q does not reference the audio url", job.Error)
	}
	if job.Video != "" {
		t.Errorf("video = %q, want empty", job.Video)
	}

	entries, _ := os.ReadDir(e.storage)
	if len(entries) != 0 {
		t.Errorf("expected no stored video, found %d entries", len(entries))
	}
	e.assertWorkRootEmpty(t)
}

func TestValidationMakesNoNetworkCall(t *testing.T) {
	e := newEnv(t, 9, nil)

	tests := []struct {
		name string
		req  jobs.Request
	}{
		{"no images", jobs.Request{AudioURL: e.url("voice.mp3")}},
		{"blank images", jobs.Request{ImageURLs: []string{" ", ""}, AudioURL: e.url("voice.mp3")}},
		{"no audio", jobs.Request{ImageURLs: []string{e.url("a.jpg")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.proc.Submit(context.Background(), tt.req)
			if !errors.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}

			err = e.proc.ProcessJob(context.Background(), "direct-"+tt.name, tt.req)
			if !errors.IsValidation(err) {
				t.Errorf("expected validation error from ProcessJob, got %v", err)
			}
			job, _ := e.registry.Get("direct-" + tt.name)
			if job.Status != jobs.StatusError {
				t.Errorf("status = %s, want error", job.Status)
			}
		})
	}

	if e.hits.Load() != 0 {
		t.Errorf("expected no asset requests, got %d", e.hits.Load())
	}
	if len(e.runner.Stages()) != 0 {
		t.Errorf("expected no stages to run, got %v", e.runner.Stages())
	}
	e.assertWorkRootEmpty(t)
}

func TestIdenticalRequestsAreIndependent(t *testing.T) {
	e := newEnv(t, 4, nil)
	req := jobs.Request{
		ImageURLs: []string{e.url("a.jpg"), e.url("b.jpg")},
		AudioURL:  e.url("voice.mp3"),
	}

	id1, err1 := e.proc.Submit(context.Background(), req)
	id2, err2 := e.proc.Submit(context.Background(), req)
	if err1 != nil || err2 != nil {
		t.Fatalf("Submit: %v, %v", err1, err2)
	}
	if id1 == id2 {
		t.Fatal("expected distinct handles")
	}
	e.proc.Wait()

	for _, id := range []string{id1, id2} {
		job, _ := e.registry.Get(id)
		if job.Status != jobs.StatusDone {
			t.Errorf("job %s status = %s (%s)", id, job.Status, job.Error)
		}
		if _, err := os.Stat(filepath.Join(e.storage, id+".mp4")); err != nil {
			t.Errorf("missing artifact for %s: %v", id, err)
		}
	}
	e.assertWorkRootEmpty(t)
}

func TestAllOptionalStages(t *testing.T) {
	e := newEnv(t, 6, nil)

	id, err := e.proc.Submit(context.Background(), jobs.Request{
		ImageURLs:    []string{e.url("a.jpg")},
		AudioURL:     e.url("voice.mp3"),
		BGMURL:       e.url("music.mp3"),
		IntroURL:     e.url("intro.mp4"),
		LogoURL:      e.url("logo.png"),
		LogoPosition: jobs.LogoBottomLeft,
		SubtitleText: "Hello world. This is a test!",
		AspectRatio:  jobs.AspectVertical,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	e.proc.Wait()

	job, _ := e.registry.Get(id)
	if job.Status != jobs.StatusDone {
		t.Fatalf("status = %s (%s)", job.Status, job.Error)
	}

	wantRunner := []string{
		"normalize-image", "normalize-audio", "mix-bgm", "compose-image-video",
		"prepend-intro", "merge-audio-video", "overlay-logo", "burn-subtitles",
	}
	if got := e.runner.Stages(); strings.Join(got, ",") != strings.Join(wantRunner, ",") {
		t.Errorf("stages = %v, want %v", got, wantRunner)
	}

	wantStates := []string{
		"submitted", "validating", "fetching-images", "fetching-audio", "mixing-bgm",
		"composing-image-video", "prepending-intro", "merging-audio-video",
		"overlaying-logo", "burning-subtitles", "finalizing", "done",
	}
	if got := e.events.Stages(id); strings.Join(got, ",") != strings.Join(wantStates, ",") {
		t.Errorf("states = %v, want %v", got, wantStates)
	}

	srt := e.runner.File("burn-subtitles")
	if !strings.Contains(srt, "00:00:00,000 --> 00:00:02,667\nHello world.") ||
		!strings.Contains(srt, "00:00:02,667 --> 00:00:06,000\nThis is a test!") {
		t.Errorf("unexpected subtitles:\n%s", srt)
	}

	if intro := e.runner.File("prepend-intro"); !strings.Contains(intro, "intro_raw.mp4") {
		t.Errorf("intro list does not start with the intro clip:\n%s", intro)
	}
	e.assertWorkRootEmpty(t)
}

func TestRelativeWorkRootResolvesStageInputs(t *testing.T) {
	t.Chdir(t.TempDir())

	e := newEnv(t, 6, func(d *Deps) { d.WorkRoot = "work" })
	e.workRoot = "work"

	id, err := e.proc.Submit(context.Background(), jobs.Request{
		ImageURLs:    []string{e.url("a.jpg"), e.url("b.jpg")},
		AudioURL:     e.url("voice.mp3"),
		BGMURL:       e.url("music.mp3"),
		IntroURL:     e.url("intro.mp4"),
		LogoURL:      e.url("logo.png"),
		SubtitleText: "One sentence. Another one.",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	e.proc.Wait()

	job, _ := e.registry.Get(id)
	if job.Status != jobs.StatusDone {
		t.Fatalf("status = %s (%s)", job.Status, job.Error)
	}
	if missing := e.runner.Missing(); len(missing) != 0 {
		t.Errorf("stage inputs not reachable from the ffmpeg working directory: %v", missing)
	}
	e.assertWorkRootEmpty(t)
}

func TestStageFailure(t *testing.T) {
	e := newEnv(t, 9, nil)
	e.runner.failOn = "merge-audio-video"

	id, err := e.proc.Submit(context.Background(), jobs.Request{
		ImageURLs: []string{e.url("a.jpg")},
		AudioURL:  e.url("voice.mp3"),
		LogoURL:   e.url("logo.png"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	e.proc.Wait()

	job, _ := e.registry.Get(id)
	if job.Status != jobs.StatusError || !strings.Contains(job.Error, "merge-audio-video") {
		t.Errorf("job = %+v", job)
	}
	for _, s := range e.runner.Stages() {
		if s == "overlay-logo" {
			t.Error("stages after a failure must not run")
		}
	}
	e.assertWorkRootEmpty(t)
}

func TestZeroDurationFailsJob(t *testing.T) {
	e := newEnv(t, 0, nil)

	id, _ := e.proc.Submit(context.Background(), jobs.Request{
		ImageURLs: []string{e.url("a.jpg")},
		AudioURL:  e.url("voice.mp3"),
	})
	e.proc.Wait()

	job, _ := e.registry.Get(id)
	if job.Status != jobs.StatusError || !strings.Contains(job.Error, string(errors.CodeProbe)) {
		t.Errorf("job = %+v", job)
	}
	e.assertWorkRootEmpty(t)
}

func TestVerifierFailure(t *testing.T) {
	e := newEnv(t, 9, func(d *Deps) { d.Verifier = failingVerifier{} })

	id, _ := e.proc.Submit(context.Background(), jobs.Request{
		ImageURLs: []string{e.url("a.jpg")},
		AudioURL:  e.url("voice.mp3"),
	})
	e.proc.Wait()

	job, _ := e.registry.Get(id)
	if job.Status != jobs.StatusError {
		t.Errorf("status = %s, want error", job.Status)
	}
	entries, _ := os.ReadDir(e.storage)
	if len(entries) != 0 {
		t.Error("unverified output must not be stored")
	}
}

func TestPoolFullRejectsJob(t *testing.T) {
	e := newEnv(t, 9, func(d *Deps) { d.MaxConcurrentJobs = 1 })
	e.runner.block = make(chan struct{})
	e.runner.started = make(chan struct{}, 1)

	req := jobs.Request{ImageURLs: []string{e.url("a.jpg")}, AudioURL: e.url("voice.mp3")}

	first, err := e.proc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	<-e.runner.started

	second, err := e.proc.Submit(context.Background(), req)
	if !errors.IsCode(err, errors.CodeResourceExhaust) {
		t.Fatalf("expected RESOURCE_EXHAUSTED, got %v", err)
	}
	if job, _ := e.registry.Get(second); job.Status != jobs.StatusError {
		t.Errorf("rejected job status = %s, want error", job.Status)
	}
	if stats := e.proc.Stats(); stats.Running != 1 || stats.Capacity != 1 {
		t.Errorf("stats = %+v", stats)
	}

	close(e.runner.block)
	e.proc.Wait()

	if job, _ := e.registry.Get(first); job.Status != jobs.StatusDone {
		t.Errorf("first job status = %s (%s)", job.Status, job.Error)
	}
}

func TestConcurrentPollingSeesConsistentState(t *testing.T) {
	e := newEnv(t, 9, nil)

	id, err := e.proc.Submit(context.Background(), jobs.Request{
		ImageURLs: []string{e.url("a.jpg"), e.url("b.jpg")},
		AudioURL:  e.url("voice.mp3"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, _ := e.registry.Get(id)
				if job.Status == jobs.StatusDone && job.Video == "" {
					t.Error("observed done without a video")
					return
				}
				if job.Status == jobs.StatusProcessing && job.Video != "" {
					t.Error("observed a video while processing")
					return
				}
				select {
				case <-done:
					return
				default:
				}
			}
		}()
	}

	e.proc.Wait()
	close(done)
	wg.Wait()
}

func TestTruncateMessage(t *testing.T) {
	long := strings.Repeat("é", 1500)
	got := truncateMessage(long, 2000)
	if len(got) > 2000 {
		t.Errorf("len = %d, want <= 2000", len(got))
	}
	if !strings.HasPrefix(long, got) || len(got) != 2000 {
		t.Errorf("expected a 2000-byte prefix on a rune boundary, got %d bytes", len(got))
	}
	if truncateMessage("short", 2000) != "short" {
		t.Error("short messages must be unchanged")
	}
}

func TestParseQueued(t *testing.T) {
	id, req, err := ParseQueued([]byte(`{"job_id":"abc-1","image_urls":["http://x/a.jpg"],"audio_url":"http://x/v.mp3","aspect_ratio":"VERTICAL"}`))
	if err != nil {
		t.Fatalf("ParseQueued: %v", err)
	}
	if id != "abc-1" {
		t.Errorf("id = %q, want abc-1", id)
	}
	if req.AspectRatio != jobs.AspectVertical || req.LogoPosition != jobs.LogoTopRight {
		t.Errorf("request not normalized: %+v", req)
	}

	id, _, err = ParseQueued([]byte(`{"image_urls":["http://x/a.jpg"],"audio_url":"http://x/v.mp3"}`))
	if err != nil || id != "" {
		t.Errorf("message without job_id: id=%q err=%v", id, err)
	}

	for _, body := range []string{
		`{"image_url":"typo"}`,
		`not json`,
		`{"job_id":"../x","image_urls":["http://x/a.jpg"],"audio_url":"http://x/v.mp3"}`,
	} {
		if _, _, err := ParseQueued([]byte(body)); !errors.IsValidation(err) {
			t.Errorf("%s: expected validation error, got %v", body, err)
		}
	}
}

func TestSubmitWithIDRejectsTakenHandle(t *testing.T) {
	e := newEnv(t, 3, nil)
	req := jobs.Request{ImageURLs: []string{e.url("a.png")}, AudioURL: e.url("voice.mp3")}

	id, err := e.proc.SubmitWithID(context.Background(), "fixed", req)
	if err != nil || id != "fixed" {
		t.Fatalf("SubmitWithID = %q, %v", id, err)
	}
	e.proc.Wait()

	if _, err := e.proc.SubmitWithID(context.Background(), "fixed", req); !errors.IsValidation(err) {
		t.Fatalf("expected validation error for reused id, got %v", err)
	}
	job, _ := e.registry.Get("fixed")
	if job.Status != jobs.StatusDone {
		t.Errorf("existing job was touched: %+v", job)
	}
	if len(e.history.recs) != 1 {
		t.Errorf("history = %d records, want 1", len(e.history.recs))
	}
}

func TestWorkspace(t *testing.T) {
	root := t.TempDir()
	a, err := AcquireWorkspace(root, "same")
	if err != nil {
		t.Fatal(err)
	}
	b, err := AcquireWorkspace(root, "same")
	if err != nil {
		t.Fatal(err)
	}
	if a.Dir == b.Dir {
		t.Error("workspaces must be exclusive")
	}
	if err := os.WriteFile(a.Path("x"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(a.Dir) {
		t.Errorf("workspace dir %q is not absolute", a.Dir)
	}
	if err := a.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(a.Dir); !os.IsNotExist(err) {
		t.Error("expected workspace to be removed")
	}
	if ObjectKey("../etc/x") != "_etc_x.mp4" {
		t.Errorf("ObjectKey = %q", ObjectKey("../etc/x"))
	}
}
