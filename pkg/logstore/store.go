/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	"k8s.io/klog/v2"

	commonconfig "github.com/ccieblogger/netraven-sub003/pkg/config"
	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
)

const (
	flushInterval = time.Second
	flushBatch    = 256
)

// Sink receives drained batches of entries.
type Sink interface {
	Write(ctx context.Context, entries []*Entry) error
}

// DBSink persists entries as catalog rows.
type DBSink struct {
	dbClient *client.Client
}

func NewDBSink(dbClient *client.Client) *DBSink {
	return &DBSink{dbClient: dbClient}
}

func (s *DBSink) Write(ctx context.Context, entries []*Entry) error {
	records := make([]*client.LogEntry, 0, len(entries))
	for _, entry := range entries {
		records = append(records, entry.toRecord())
	}
	return s.dbClient.InsertLogEntries(ctx, records)
}

// FileSink appends entries as NDJSON lines to a size-rotated file.
type FileSink struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{
		writer: &lumberjack.Logger{
			Filename:   filepath.Join(dir, "netraven.ndjson"),
			MaxSize:    100, // megabytes
			MaxBackups: 10,
			Compress:   true,
		},
	}
}

func (s *FileSink) Write(_ context.Context, entries []*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode log entry: %v", err)
		}
		if _, err = s.writer.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileSink) Close() error {
	return s.writer.Close()
}

// Store accepts entries from any goroutine, redacts them, and a single
// writer goroutine drains the ring to every sink.
type Store struct {
	ring     *ring
	redactor *Redactor
	sinks    []Sink

	wake   chan struct{}
	done   chan struct{}
	closed sync.Once
}

// NewStore builds a Store with the given sinks and starts its writer.
func NewStore(sinks ...Sink) *Store {
	s := &Store{
		ring:     newRing(commonconfig.GetLogRingSize()),
		redactor: NewRedactor(),
		sinks:    sinks,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Log redacts and enqueues one entry. Never blocks the caller: when the
// ring is full the policy in ring.push decides what to drop.
func (s *Store) Log(entry *Entry) {
	if entry.Ts.IsZero() {
		entry.Ts = time.Now().UTC()
	}
	s.redactor.ApplyEntry(entry)
	s.ring.push(entry)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Job logs a run-scoped message.
func (s *Store) Job(runId, level, message string) {
	s.Log(&Entry{Level: level, Source: SourceJob, JobRunId: runId, Message: message})
}

// Session logs a device session message within a run.
func (s *Store) Session(runId, deviceId, level, message string) {
	s.Log(&Entry{Level: level, Source: SourceSession, JobRunId: runId, DeviceId: deviceId, Message: message})
}

// System logs a process-level message.
func (s *Store) System(level, message string) {
	s.Log(&Entry{Level: level, Source: SourceSystem, Message: message})
}

// Dropped returns how many entries the ring evicted so far.
func (s *Store) Dropped() uint64 {
	return s.ring.droppedCount()
}

func (s *Store) writeLoop() {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			s.flush()
			return
		case <-s.wake:
		case <-ticker.C:
		}
		s.flush()
	}
}

func (s *Store) flush() {
	for {
		batch := s.ring.drain(flushBatch)
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		for _, sink := range s.sinks {
			if err := sink.Write(ctx, batch); err != nil {
				klog.ErrorS(err, "log sink write failed", "batch", len(batch))
			}
		}
		cancel()
	}
}

// Close flushes what is buffered and stops the writer.
func (s *Store) Close() {
	s.closed.Do(func() {
		close(s.done)
	})
}

// RunSweeper deletes expired entries on the given interval until ctx ends.
// Session entries use the shorter session retention; everything else uses
// the general retention.
func (s *Store) RunSweeper(ctx context.Context, dbClient *client.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		now := time.Now().UTC()
		sessionCutoff := now.AddDate(0, 0, -commonconfig.GetSessionLogRetentionDays())
		generalCutoff := now.AddDate(0, 0, -commonconfig.GetLogRetentionDays())

		if n, err := dbClient.DeleteLogEntriesBefore(ctx, sessionCutoff, []string{SourceSession}); err != nil {
			klog.ErrorS(err, "failed to sweep session log entries")
		} else if n > 0 {
			klog.Infof("swept %d expired session log entries", n)
		}
		if n, err := dbClient.DeleteLogEntriesBefore(ctx, generalCutoff,
			[]string{SourceJob, SourceSystem, SourceAuth}); err != nil {
			klog.ErrorS(err, "failed to sweep log entries")
		} else if n > 0 {
			klog.Infof("swept %d expired log entries", n)
		}
	}
}
