/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package dispatcher

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"k8s.io/klog/v2"

	commonconfig "github.com/ccieblogger/netraven-sub003/pkg/config"
	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
	commonklog "github.com/ccieblogger/netraven-sub003/pkg/klog"
	"github.com/ccieblogger/netraven-sub003/pkg/logstore"
	"github.com/ccieblogger/netraven-sub003/pkg/options"
	"github.com/ccieblogger/netraven-sub003/pkg/queue"
)

// Server is the dispatcher daemon.
type Server struct {
	opts       *options.Options
	dbClient   *client.Client
	queue      queue.Queue
	logs       *logstore.Store
	dispatcher *Dispatcher
	ctx        context.Context
	cancel     context.CancelFunc
	isInited   bool
}

// NewServer creates and returns a new dispatcher Server instance.
func NewServer() (*Server, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	s := &Server{
		opts:   &options.Options{},
		ctx:    ctx,
		cancel: cancel,
	}
	if err := s.init(); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Server) init() error {
	var err error
	if err = s.opts.InitFlags(); err != nil {
		klog.ErrorS(err, "failed to parse flags")
		return err
	}
	if err = commonklog.Init(s.opts.LogfilePath, s.opts.LogFileSize); err != nil {
		klog.ErrorS(err, "failed to init logs")
		return err
	}
	if err = s.initConfig(); err != nil {
		klog.ErrorS(err, "failed to init config")
		return err
	}

	s.dbClient = client.NewClient()
	if s.dbClient == nil {
		return fmt.Errorf("failed to connect database")
	}
	if err = s.dbClient.Migrate(); err != nil {
		return err
	}
	if s.queue, err = queue.NewRedisQueue(s.ctx); err != nil {
		return err
	}
	s.logs = logstore.NewStore(
		logstore.NewDBSink(s.dbClient),
		logstore.NewFileSink(commonconfig.GetLogDir()))
	s.dispatcher = New(s.dbClient, s.queue, s.logs)
	s.isInited = true
	return nil
}

func (s *Server) initConfig() error {
	fullPath := s.opts.Config
	if fullPath != "" {
		var err error
		if fullPath, err = filepath.Abs(s.opts.Config); err != nil {
			return err
		}
	}
	return commonconfig.LoadConfig(fullPath)
}

// Start runs the dispatcher loop until a shutdown signal arrives.
func (s *Server) Start() {
	if !s.isInited {
		klog.Errorf("please init dispatcher first")
		return
	}
	klog.Infof("starting dispatcher")
	s.dispatcher.Run(s.ctx)
	s.Stop()
}

// Stop flushes and closes the shared components.
func (s *Server) Stop() {
	if err := s.queue.Close(); err != nil {
		klog.ErrorS(err, "failed to close queue")
	}
	s.logs.Close()
	klog.Info("dispatcher is stopped")
	klog.Flush()
}
