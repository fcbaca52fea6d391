package channel

import (
	"context"

	"github.com/gorilla/websocket"
)

// WebsocketDialer is the production Dialer backed by gorilla/websocket.
type WebsocketDialer struct{}

type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c wsConn) Close() error {
	return c.conn.Close()
}

func (WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return wsConn{conn: conn}, nil
}
