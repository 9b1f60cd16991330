package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"campusconnect/pkg/client"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// loadMetrics tracks the websocket load test results.
type loadMetrics struct {
	attempted atomic.Int64
	connected atomic.Int64
	failed    atomic.Int64
	received  atomic.Int64
	pings     atomic.Int64
}

func (a *app) loadtestCmd() *cobra.Command {
	var (
		clients  int
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Hold many realtime connections open and count deliveries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := a.client()
			if err != nil {
				return err
			}
			if c.Token() == "" {
				return fmt.Errorf("not logged in")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), duration)
			defer cancel()

			var m loadMetrics
			var wg sync.WaitGroup
			for i := 0; i < clients; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					runLoadClient(ctx, c, &m)
				}()
				// Stagger connections so ticket issuance is not rate limited in a burst.
				select {
				case <-time.After(50 * time.Millisecond):
				case <-ctx.Done():
				}
			}
			wg.Wait()

			printLoadMetrics(cmd.OutOrStdout(), &m)
			return nil
		},
	}
	cmd.Flags().IntVar(&clients, "clients", 50, "number of concurrent connections")
	cmd.Flags().DurationVar(&duration, "duration", 30*time.Second, "test duration")
	return cmd
}

func runLoadClient(ctx context.Context, c *client.Client, m *loadMetrics) {
	m.attempted.Add(1)
	conn, err := dial(ctx, c)
	if err != nil {
		m.failed.Add(1)
		return
	}
	defer func() { _ = conn.Close() }()
	m.connected.Add(1)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			m.received.Add(1)
		}
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
				return
			}
			m.pings.Add(1)
		}
	}
}

func printLoadMetrics(out io.Writer, m *loadMetrics) {
	fmt.Fprintln(out, "📊 Load test results")
	fmt.Fprintf(out, "Connections attempted: %s\n", humanize.Comma(m.attempted.Load()))
	fmt.Fprintf(out, "Connections open:      %s\n", humanize.Comma(m.connected.Load()))
	fmt.Fprintf(out, "Connections failed:    %s\n", humanize.Comma(m.failed.Load()))
	fmt.Fprintf(out, "Pings sent:            %s\n", humanize.Comma(m.pings.Load()))
	fmt.Fprintf(out, "Frames received:       %s\n", humanize.Comma(m.received.Load()))
}
