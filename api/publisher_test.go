package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"taskboard-api/domain"
)

func TestTryEnqueueJobWaitsForCapacity(t *testing.T) {
	resetEventPublisherForTests()
	t.Cleanup(resetEventPublisherForTests)

	jobs = make(chan publishJob, 1)
	handoffTimeout = 50 * time.Millisecond

	jobs <- publishJob{}

	done := make(chan bool, 1)
	go func() {
		done <- tryEnqueueJob(publishJob{})
	}()

	select {
	case <-done:
		t.Fatal("tryEnqueueJob returned before capacity was freed")
	case <-time.After(20 * time.Millisecond):
	}

	<-jobs

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("expected successful enqueue after capacity freed")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for enqueue completion")
	}
}

func TestTryEnqueueJobTimesOut(t *testing.T) {
	resetEventPublisherForTests()
	t.Cleanup(resetEventPublisherForTests)

	jobs = make(chan publishJob, 1)
	handoffTimeout = 30 * time.Millisecond

	jobs <- publishJob{}

	if tryEnqueueJob(publishJob{}) {
		t.Fatal("expected enqueue to fail when timeout elapsed")
	}

	select {
	case <-jobs:
	default:
		t.Fatal("expected channel to remain full after timeout")
	}
}

func TestTryEnqueueJobReturnsFalseWhenClosed(t *testing.T) {
	resetEventPublisherForTests()
	t.Cleanup(resetEventPublisherForTests)
	t.Cleanup(func() { jobs = nil })

	jobs = make(chan publishJob)
	close(jobs)

	if tryEnqueueJob(publishJob{}) {
		t.Fatal("expected enqueue to fail when channel is closed")
	}
}

func TestTryEnqueueJobNoWaitWhenZeroTimeout(t *testing.T) {
	resetEventPublisherForTests()
	t.Cleanup(resetEventPublisherForTests)

	jobs = make(chan publishJob, 1)
	handoffTimeout = 0

	jobs <- publishJob{}

	if tryEnqueueJob(publishJob{}) {
		t.Fatal("expected enqueue to fail when buffer full and no timeout")
	}

	<-jobs

	if !tryEnqueueJob(publishJob{}) {
		t.Fatal("expected enqueue to succeed when buffer has capacity")
	}
}

type failingPublishStore struct {
	noopStore

	mu    sync.Mutex
	calls int
}

func (f *failingPublishStore) PublishEvents(ctx context.Context, userID string, events []domain.BoardEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("queue down")
}

func TestWorkerRollsBackDeduperOnPublishFailure(t *testing.T) {
	resetEventPublisherForTests()
	t.Cleanup(resetEventPublisherForTests)

	logger, _ := test.NewNullLogger()
	store := &failingPublishStore{}
	deduper := &stubDeduper{addResult: true}

	globalStore = store
	globalDeduper = deduper
	globalLog = logger
	publishTimeout = time.Second

	ch := make(chan publishJob, 1)
	workerWG.Add(1)
	go worker(0, ch)

	ch <- publishJob{
		userID: "user",
		events: []domain.BoardEvent{{IdempotencyKey: "k1"}},
		added:  []string{"k1"},
	}
	close(ch)
	workerWG.Wait()

	deduper.mu.Lock()
	defer deduper.mu.Unlock()
	if len(deduper.removed) != 1 || deduper.removed[0] != "k1" {
		t.Fatalf("expected deduper rollback for k1, got %#v", deduper.removed)
	}
}

func TestInitEventPublisherRunsOnce(t *testing.T) {
	resetEventPublisherForTests()
	t.Cleanup(resetEventPublisherForTests)

	logger := log.New()
	first := &mockStore{}
	second := &mockStore{}

	initEventPublisher(first, &stubDeduper{addResult: true}, logger)
	initEventPublisher(second, &stubDeduper{addResult: true}, logger)

	if globalStore != Storage(first) {
		t.Fatal("expected first init to win")
	}
}
