/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	commonconfig "github.com/ccieblogger/netraven-sub003/pkg/config"
	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
	commonklog "github.com/ccieblogger/netraven-sub003/pkg/klog"
	"github.com/ccieblogger/netraven-sub003/pkg/logstore"
	"github.com/ccieblogger/netraven-sub003/pkg/options"
	"github.com/ccieblogger/netraven-sub003/pkg/queue"
	"github.com/ccieblogger/netraven-sub003/pkg/service"
	"github.com/ccieblogger/netraven-sub003/pkg/vault"
)

// Server owns the HTTP frontend and the components it serves from.
type Server struct {
	opts       *options.Options
	httpServer *http.Server
	dbClient   *client.Client
	queue      queue.Queue
	logs       *logstore.Store
	ctx        context.Context
	cancel     context.CancelFunc
	isInited   bool
}

// NewServer creates and returns a new Server instance.
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

// init parses flags, loads configuration and wires the shared components.
func (s *Server) init() error {
	gin.SetMode(gin.ReleaseMode)
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
	v, err := vault.New(s.dbClient)
	if err != nil {
		return err
	}
	if err = v.Bootstrap(s.ctx); err != nil {
		return err
	}
	s.logs = logstore.NewStore(
		logstore.NewDBSink(s.dbClient),
		logstore.NewFileSink(commonconfig.GetLogDir()))

	handler := NewHandler(service.New(s.dbClient, s.queue, v, s.logs))
	if commonconfig.GetServerPort() <= 0 {
		return fmt.Errorf("the apiserver port is not defined")
	}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", commonconfig.GetServerPort()),
		Handler: InitHttpHandlers(handler),
	}
	s.isInited = true
	return nil
}

// initConfig loads the server configuration from the specified config file path.
func (s *Server) initConfig() error {
	if s.opts.Config == "" {
		return commonconfig.LoadConfig("")
	}
	fullPath, err := filepath.Abs(s.opts.Config)
	if err != nil {
		return err
	}
	if err = commonconfig.LoadConfig(fullPath); err != nil {
		return fmt.Errorf("config path: %s, err: %v", fullPath, err)
	}
	return nil
}

// Start serves HTTP until a shutdown signal arrives, then stops cleanly.
func (s *Server) Start() {
	if !s.isInited {
		klog.Errorf("please init api-server first")
		return
	}
	gin.EnableJsonDecoderDisallowUnknownFields()

	klog.Infof("http-server listen port: %d", commonconfig.GetServerPort())
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.ErrorS(err, "failed to start http server")
			s.cancel()
		}
	}()
	go s.logs.RunSweeper(s.ctx, s.dbClient, time.Hour)

	<-s.ctx.Done()
	s.Stop()
}

// Stop gracefully shuts down the HTTP server and the shared components.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	klog.Info("shutting down http server...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		klog.ErrorS(err, "failed to shutdown httpserver")
	}
	if err := s.queue.Close(); err != nil {
		klog.ErrorS(err, "failed to close queue")
	}
	s.logs.Close()
	klog.Info("apiserver is stopped")
	klog.Flush()
}
