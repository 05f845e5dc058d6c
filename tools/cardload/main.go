// Command cardload holds many balance stream subscribers open while spending on
// the card, and reports how many balance events each subscriber saw.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/cardfuel/internal/domain"
)

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	events      atomic.Int64
	spends      atomic.Int64
	spendErrs   atomic.Int64
	topUps      atomic.Int64
}

func main() {
	var (
		baseURL      string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
		spendEvery   time.Duration
		spendAmount  string
	)

	flag.StringVar(&baseURL, "url", "http://localhost:8000", "cardfuel base URL")
	flag.IntVar(&connections, "conns", 200, "number of balance stream subscribers")
	flag.DurationVar(&testDuration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "spread subscriber starts across this window")
	flag.DurationVar(&spendEvery, "spend-every", time.Second, "interval between card spends, 0 disables spending")
	flag.StringVar(&spendAmount, "spend", "60", "USD amount of each card spend")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if connections <= 0 {
		logger.Fatal("invalid conns", zap.Int("conns", connections))
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if rampUp == 0 && connections > 100 {
		// 1 second per 500 connections
		rampUp = time.Duration(connections/500) * time.Second
		if rampUp < time.Second {
			rampUp = time.Second
		}
	}

	logger.Info("starting load",
		zap.String("url", baseURL),
		zap.Int("conns", connections),
		zap.Duration("dur", testDuration),
		zap.Duration("ramp", rampUp),
		zap.Duration("spend_every", spendEvery))

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	var (
		c     counters
		wg    sync.WaitGroup
		start = time.Now()
	)

	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(connections)
	}

	go report(ctx, logger, &c, start)

	if spendEvery > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			spend(ctx, logger, client, baseURL, spendAmount, spendEvery, &c)
		}()
	}

	for i := 0; i < connections && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, baseURL+"/balance/stream", &c)
		}()
	}

	wg.Wait()

	elapsed := time.Since(start)
	logger.Info("done",
		zap.Int64("connected", c.connected.Load()),
		zap.Int64("connect_errs", c.connectErrs.Load()),
		zap.Int64("stream_errs", c.streamErrs.Load()),
		zap.Int64("events", c.events.Load()),
		zap.Int64("spends", c.spends.Load()),
		zap.Int64("spend_errs", c.spendErrs.Load()),
		zap.Int64("top_ups", c.topUps.Load()),
		zap.Duration("elapsed", elapsed.Truncate(time.Millisecond)),
		zap.Float64("events_per_sec", float64(c.events.Load())/elapsed.Seconds()))
}

func subscribe(ctx context.Context, client *http.Client, url string, c *counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.connectErrs.Add(1)
		return
	}

	c.connected.Add(1)
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				c.streamErrs.Add(1)
			}
			return
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		var snapshot domain.BalanceSnapshot
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &snapshot); err != nil {
			c.streamErrs.Add(1)
			continue
		}
		c.events.Add(1)
	}
}

func spend(ctx context.Context, logger *zap.Logger, client *http.Client, baseURL, amount string, every time.Duration, c *counters) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	body := []byte(`{"amount": "` + amount + `", "currency": "USD"}`)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/use-card", bytes.NewReader(body))
		if err != nil {
			c.spendErrs.Add(1)
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			c.spendErrs.Add(1)
			continue
		}

		var result struct {
			Detail string           `json:"detail"`
			TopUp  *json.RawMessage `json:"top_up"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			c.spendErrs.Add(1)
			logger.Warn("spend rejected", zap.Int("status", resp.StatusCode), zap.String("detail", result.Detail))
			continue
		}
		c.spends.Add(1)
		if result.TopUp != nil {
			c.topUps.Add(1)
		}
	}
}

func report(ctx context.Context, logger *zap.Logger, c *counters, start time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("status",
				zap.Int64("connected", c.connected.Load()),
				zap.Int64("connect_errs", c.connectErrs.Load()),
				zap.Int64("events", c.events.Load()),
				zap.Int64("spends", c.spends.Load()),
				zap.Int64("top_ups", c.topUps.Load()),
				zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))
		}
	}
}
