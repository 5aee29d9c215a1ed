package api

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"tgrelay/internal/listener"
	"tgrelay/internal/routing"
	"tgrelay/internal/stats"
)

type QueueInfo interface {
	Len() int
	Dropped() int64
}

type Server struct {
	echo  *echo.Echo
	rules *listener.Rules
	queue QueueInfo
	stats *stats.Counters
	sse   *SSEBroker
}

type SSEBroker struct {
	clients map[chan string]bool
	mu      sync.RWMutex
}

func NewSSEBroker() *SSEBroker {
	return &SSEBroker{clients: make(map[chan string]bool)}
}

func (b *SSEBroker) Subscribe() chan string {
	ch := make(chan string, 10)
	b.mu.Lock()
	b.clients[ch] = true
	b.mu.Unlock()
	return ch
}

func (b *SSEBroker) Unsubscribe(ch chan string) {
	b.mu.Lock()
	delete(b.clients, ch)
	close(ch)
	b.mu.Unlock()
}

// Broadcast never blocks: slow subscribers miss events.
func (b *SSEBroker) Broadcast(msg string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

type StatsView struct {
	stats.Snapshot
	Queued  int   `json:"queued"`
	Dropped int64 `json:"dropped"`
}

type FilterView struct {
	Name     string   `json:"name"`
	Mode     string   `json:"mode"`
	Sources  []int64  `json:"sources"`
	Keywords []string `json:"keywords"`
}

type RoutesView struct {
	Routes  []routing.Route `json:"routes"`
	Filters []FilterView    `json:"filters"`
}

func NewServer(rules *listener.Rules, q QueueInfo, c *stats.Counters) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	s := &Server{
		echo:  e,
		rules: rules,
		queue: q,
		stats: c,
		sse:   NewSSEBroker(),
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.health)
	s.echo.GET("/api/stats", s.getStats)
	s.echo.GET("/api/routes", s.getRoutes)
	s.echo.GET("/api/events", s.events)
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}

// Broadcast pushes a forward outcome to every /api/events subscriber.
func (s *Server) Broadcast(msg string) {
	s.sse.Broadcast(msg)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStats(c echo.Context) error {
	return c.JSON(http.StatusOK, StatsView{
		Snapshot: s.stats.Snapshot(),
		Queued:   s.queue.Len(),
		Dropped:  s.queue.Dropped(),
	})
}

func (s *Server) getRoutes(c echo.Context) error {
	view := RoutesView{Routes: s.rules.Routes().Routes()}
	for _, g := range s.rules.Groups() {
		sources := g.Sources()
		sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
		view.Filters = append(view.Filters, FilterView{
			Name:     g.Name,
			Mode:     g.Mode.String(),
			Sources:  sources,
			Keywords: g.Keywords,
		})
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) events(c echo.Context) error {
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")

	ch := s.sse.Subscribe()
	defer s.sse.Unsubscribe(ch)

	// Send initial ping
	fmt.Fprintf(c.Response(), ": ping\n\n")
	c.Response().Flush()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case msg := <-ch:
			fmt.Fprintf(c.Response(), "event: forward\n")
			for _, line := range strings.Split(msg, "\n") {
				fmt.Fprintf(c.Response(), "data: %s\n", line)
			}
			fmt.Fprintf(c.Response(), "\n")
			c.Response().Flush()
		}
	}
}
