package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"campusconnect/pkg/client"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func (a *app) watchCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live notice, event and message updates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			// The refresher may rotate tokens while we watch.
			defer func() { _ = a.persist(s.Client(), s.Profile().Email) }()

			conn, err := dial(cmd.Context(), s.Client())
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			fmt.Fprintf(cmd.ErrOrStderr(), "Watching as %s, Ctrl-C to stop\n", s.Profile().FullName)
			return stream(cmd.Context(), conn, cmd.OutOrStdout(), raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print raw JSON frames")
	return cmd
}

// dial exchanges the access token for a one-time ticket and opens the socket.
func dial(ctx context.Context, c *client.Client) (*websocket.Conn, error) {
	ticket, err := c.WSTicket(ctx)
	if err != nil {
		return nil, fmt.Errorf("ws ticket: %w", err)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, c.WebsocketURL(ticket), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	return conn, nil
}

func stream(ctx context.Context, conn *websocket.Conn, out io.Writer, raw bool) error {
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if raw {
			fmt.Fprintln(out, string(frame))
			continue
		}
		var ev client.ChangeEvent
		if err := json.Unmarshal(frame, &ev); err != nil || ev.Type == "" {
			continue
		}
		fmt.Fprintf(out, "%s  %-18s %s\n", time.Now().Format("15:04:05"), ev.Type, summarize(ev.Payload))
	}
}

// summarize picks a human label out of a change payload.
func summarize(payload json.RawMessage) string {
	var fields struct {
		ID      uint   `json:"id"`
		Title   string `json:"title"`
		Content string `json:"content"`
		PostID  uint   `json:"post_id"`
		Upvotes *int   `json:"upvotes"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return string(payload)
	}
	switch {
	case fields.Title != "":
		return fmt.Sprintf("#%d %s", fields.ID, fields.Title)
	case fields.Content != "":
		return fields.Content
	case fields.Upvotes != nil:
		return fmt.Sprintf("post #%d now at %d votes", fields.PostID, *fields.Upvotes)
	case fields.ID != 0:
		return fmt.Sprintf("#%d", fields.ID)
	}
	return string(payload)
}
