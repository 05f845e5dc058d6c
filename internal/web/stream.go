package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vadiminshakov/cardfuel/internal/domain"
)

const (
	journalPollInterval = 2 * time.Second
	heartbeatInterval   = 30 * time.Second
)

func startEventStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
}

func ping(c *gin.Context) {
	_, _ = c.Writer.WriteString(": ping\n\n")
	c.Writer.Flush()
}

func (s *Server) handleBalanceStream(c *gin.Context) {
	if s.Balances == nil {
		c.String(http.StatusServiceUnavailable, "balance stream not available")
		return
	}

	ch := s.Balances.Subscribe()
	defer s.Balances.Unsubscribe(ch)

	startEventStream(c)

	// late joiners start from the current balances
	if latest, ok := s.Balances.Latest(); ok {
		c.SSEvent("balance", latest)
		c.Writer.Flush()
	}

	// send a comment heartbeat every 30s so proxies keep connection
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			ping(c)
		case snapshot, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent("balance", snapshot)
			c.Writer.Flush()
		}
	}
}

func (s *Server) handleJournalStream(c *gin.Context) {
	if s.Journal == nil {
		c.String(http.StatusServiceUnavailable, "journal not available")
		return
	}

	// ?kind=transaction,top_up narrows the stream
	kinds, err := domain.ParseJournalKinds(c.Query("kind"))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.Journal.EventsAfter(0, kinds...)
	if err != nil {
		s.logger.Error("journal stream initial load", zap.Error(err))
		c.String(http.StatusInternalServerError, "failed to load journal")
		return
	}

	cursor := page.Cursor
	send := func(p domain.JournalPage) {
		for _, record := range p.Records {
			c.SSEvent("journal", record.Event)
		}
		c.Writer.Flush()
		cursor = p.Cursor
	}

	startEventStream(c)
	send(page)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(journalPollInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			ping(c)
		case <-pollTicker.C:
			next, err := s.Journal.EventsAfter(cursor, kinds...)
			if err != nil {
				s.logger.Warn("journal stream poll", zap.Error(err))
				continue
			}
			if len(next.Records) == 0 {
				cursor = next.Cursor
				continue
			}
			send(next)
		}
	}
}
