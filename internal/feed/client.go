package feed

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Client reads events from a feed.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to a feed URL such as ws://127.0.0.1:7070/feed.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	// Snapshots of large stores exceed the default read limit.
	conn.SetReadLimit(64 << 20)
	return &Client{conn: conn}, nil
}

// Next blocks for the next event. It returns an error once the connection
// is closed.
func (c *Client) Next(ctx context.Context) (Event, error) {
	var ev Event
	if err := wsjson.Read(ctx, c.conn, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "client closed")
}
