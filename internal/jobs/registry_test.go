package jobs

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()

	job := r.Create("job-1")
	if job.Status != StatusProcessing || job.Stage != StageSubmitted {
		t.Fatalf("initial state = %s/%s, want processing/submitted", job.Status, job.Stage)
	}

	got, ok := r.Get("job-1")
	if !ok {
		t.Fatal("expected job to be registered")
	}

	got = got.Advance(StageMergingAudio, r.Now())
	r.Set(got)
	if cur, _ := r.Get("job-1"); cur.Stage != StageMergingAudio {
		t.Fatalf("stage = %s, want %s", cur.Stage, StageMergingAudio)
	}

	r.Set(got.Done("job-1.mp4", r.Now()))
	cur, _ := r.Get("job-1")
	if cur.Status != StatusDone || cur.Video != "job-1.mp4" || !cur.Terminal() {
		t.Fatalf("final state = %+v", cur)
	}
}

func TestRegistryUnknownHandle(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected unknown handle to be absent")
	}
}

func TestFailedClearsVideo(t *testing.T) {
	now := time.Now()
	job := New("j", now).Done("j.mp4", now)
	failed := job.Failed("boom", now)
	if failed.Video != "" || failed.Error != "boom" || failed.Status != StatusError {
		t.Fatalf("failed = %+v", failed)
	}
}

// Readers must never see status done without the video reference, or error
// without a message.
func TestRegistryConcurrentReadersSeeWholeStates(t *testing.T) {
	r := NewRegistry()
	const jobsN = 8
	for i := 0; i < jobsN; i++ {
		r.Create(fmt.Sprintf("job-%d", i))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, 64)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for n := 0; n < jobsN; n++ {
					job, _ := r.Get(fmt.Sprintf("job-%d", n))
					if job.Status == StatusDone && job.Video == "" {
						errs <- "done without video"
					}
					if job.Status == StatusError && job.Error == "" {
						errs <- "error without message"
					}
				}
			}
		}()
	}

	var writers sync.WaitGroup
	for i := 0; i < jobsN; i++ {
		writers.Add(1)
		go func(id string, fail bool) {
			defer writers.Done()
			job, _ := r.Get(id)
			for _, st := range []Stage{StageValidating, StageFetchingImages, StageFetchingAudio, StageComposingVideo, StageMergingAudio, StageFinalizing} {
				job = job.Advance(st, r.Now())
				r.Set(job)
			}
			if fail {
				r.Set(job.Failed("stage failed", r.Now()))
			} else {
				r.Set(job.Done(id+".mp4", r.Now()))
			}
		}(fmt.Sprintf("job-%d", i), i%2 == 0)
	}
	writers.Wait()
	close(stop)
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Fatal(e)
	}
	if r.Len() != jobsN {
		t.Fatalf("Len = %d, want %d", r.Len(), jobsN)
	}
}

func TestRegistryReserve(t *testing.T) {
	r := NewRegistry()

	first, created := r.Reserve("queued-1")
	if !created || first.Stage != StageSubmitted {
		t.Fatalf("Reserve = %+v, %v", first, created)
	}
	r.Set(first.Advance(StageFetchingImages, r.Now()))

	again, created := r.Reserve("queued-1")
	if created {
		t.Fatal("second Reserve must not replace the job")
	}
	if again.Stage != StageFetchingImages {
		t.Errorf("Reserve returned %s, want the existing job", again.Stage)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Reserve("race"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("expected exactly one Reserve to win, got %d", wins)
	}
}

func TestRegistryUpdate(t *testing.T) {
	r := NewRegistry()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	job := r.Update("x", func(j Job, ok bool) Job {
		if ok {
			t.Error("unknown id reported as present")
		}
		return New("x", now)
	})
	if job.ID != "x" || r.Len() != 1 {
		t.Fatalf("Update did not create the job: %+v", job)
	}

	r.Update("x", func(j Job, ok bool) Job {
		if !ok {
			t.Error("known id reported as missing")
		}
		return j.Done("x.mp4", now)
	})
	if got, _ := r.Get("x"); got.Status != StatusDone {
		t.Errorf("status = %s, want done", got.Status)
	}
}
