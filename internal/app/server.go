// Package app wires the catalog, conversation flow, refresh pipeline and
// transports into one server and exposes the HTTP facade.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	cronv3 "github.com/robfig/cron/v3"

	"linkscout/internal/catalog"
	"linkscout/internal/channel"
	"linkscout/internal/config"
	"linkscout/internal/dispatch"
	"linkscout/internal/flow"
	"linkscout/internal/refresh"
	"linkscout/internal/resolver"
	"linkscout/internal/telegram"
)

const version = "0.1.0"

type Server struct {
	cfg        config.Config
	store      *catalog.Store
	machine    *flow.Machine
	dispatcher *dispatch.Dispatcher
	pipeline   *refresh.Pipeline
	cron       *cronv3.Cron
	poller     *telegram.Poller

	pollCancel context.CancelFunc
	pollDone   chan struct{}
	closeOnce  sync.Once
}

func NewServer(cfg config.Config) (*Server, error) {
	schema, err := catalog.LoadSchema(cfg.SitesFile)
	if err != nil {
		return nil, err
	}
	store, err := catalog.NewStore(schema, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}

	var ch channel.Channel
	if cfg.TelegramToken != "" {
		ch = channel.NewTelegramChannel(cfg.TelegramAPIBase, cfg.TelegramToken)
	} else {
		ch = channel.NewConsoleChannel()
	}
	dispatcher := dispatch.NewDispatcher(ch, cfg.DispatchWorkers)
	machine := flow.NewMachine(store, dispatcher, cfg.SearchWorkers)

	res := resolver.New(resolver.Options{
		Headless:    cfg.ResolverHeadless,
		MaxAttempts: cfg.ResolverMaxAttempts,
	})
	pipeline := refresh.NewPipeline(store, refresh.NewDiscoverer(), res, 2)

	s := &Server{
		cfg:        cfg,
		store:      store,
		machine:    machine,
		dispatcher: dispatcher,
		pipeline:   pipeline,
	}
	if cfg.TelegramToken != "" {
		s.poller = telegram.NewPoller(cfg.TelegramAPIBase, cfg.TelegramToken, machine)
	}
	return s, nil
}

// Start launches the refresh scheduler and, when a bot token is configured,
// the inbound long-poll loop.
func (s *Server) Start() error {
	s.cron = cronv3.New()
	for _, spec := range s.cfg.RefreshSchedule {
		if _, err := s.cron.AddFunc(spec, s.runRefresh); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
		}
	}
	s.cron.Start()
	log.Printf("refresh scheduler started entries=%d", len(s.cfg.RefreshSchedule))

	if s.cfg.RefreshOnStart {
		go s.runRefresh()
	}

	if s.poller != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.pollCancel = cancel
		s.pollDone = make(chan struct{})
		go func() {
			defer close(s.pollDone)
			s.poller.Run(ctx)
		}()
	}
	return nil
}

// runRefresh is the scheduler entry; overlapping runs are rejected by the
// pipeline itself.
func (s *Server) runRefresh() {
	changed, err := s.pipeline.RefreshAll(context.Background())
	if err != nil {
		log.Printf("refresh run finished with errors changed=%d err=%v", changed, err)
		return
	}
	log.Printf("refresh run finished changed=%d", changed)
}

// Close stops background work in dependency order: scheduler and poller
// first, then the flow's task pool, then outbound delivery.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
		if s.pollCancel != nil {
			s.pollCancel()
			<-s.pollDone
		}
		s.machine.Close()
		s.dispatcher.Close()
	})
}
