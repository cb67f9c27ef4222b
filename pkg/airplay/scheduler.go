package airplay

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/models"
)

// tickerFunc returns a tick channel and a stop function. Tests substitute a
// manually driven channel.
type tickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// runningSession is the in-memory half of an active monitoring session.
type runningSession struct {
	session  models.MonitoringSession
	channel  models.Channel
	interval time.Duration

	ctx    context.Context // cancelled by Stop; governs future ticks only
	cancel context.CancelFunc

	inFlight atomic.Bool
	skipped  atomic.Int64
}

// SchedulerState owns the index of active sessions, keyed by channel ID, and
// tracks every loop and in-flight cycle so Shutdown can wait for them.
type SchedulerState struct {
	mu        sync.Mutex
	byChannel map[string]*runningSession
	locks     map[string]*sync.Mutex
	closed    bool

	wg sync.WaitGroup
}

func NewScheduler() *SchedulerState {
	return &SchedulerState{
		byChannel: make(map[string]*runningSession),
		locks:     make(map[string]*sync.Mutex),
	}
}

// lockChannel serializes Start/Stop for one channel. Callers must call the
// returned unlock function.
func (s *SchedulerState) lockChannel(channelID string) func() {
	s.mu.Lock()
	l, ok := s.locks[channelID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[channelID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *SchedulerState) get(channelID string) *runningSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byChannel[channelID]
}

// put registers rs. It returns false once the scheduler is shut down.
func (s *SchedulerState) put(rs *runningSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.byChannel[rs.session.ChannelID] = rs
	return true
}

// remove drops the entry for channelID if it still belongs to sessionID.
func (s *SchedulerState) remove(channelID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs, ok := s.byChannel[channelID]; ok && rs.session.ID == sessionID {
		delete(s.byChannel, channelID)
	}
}

func (s *SchedulerState) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close marks the scheduler closed and returns every registered session.
func (s *SchedulerState) close() []*runningSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	out := make([]*runningSession, 0, len(s.byChannel))
	for _, rs := range s.byChannel {
		out = append(out, rs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].session.ChannelID < out[j].session.ChannelID })
	return out
}

func (s *SchedulerState) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byChannel)
}

// wait blocks until all loops and cycles exit or ctx is done.
func (s *SchedulerState) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
