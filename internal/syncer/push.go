package syncer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/clipsync-app/clipsync/internal/api"
)

// maxPushFrameBytes bounds a single push frame. Notification frames
// are small JSON objects; anything larger is a protocol violation.
const maxPushFrameBytes = 1 << 20

// pushStream is one live push subscription. The listener reads frames
// until renewal or failure.
type pushStream interface {
	ReadMessage(ctx context.Context) ([]byte, error)
	Close() error
}

// pushDialer opens a push subscription from a negotiated connection
// descriptor. Tests inject fakes; the default is dialPush.
type pushDialer func(ctx context.Context, conn *api.PushConnection) (pushStream, error)

// dialPush opens a websocket to the negotiated URL, authenticating
// with the negotiated access token when present.
func dialPush(ctx context.Context, conn *api.PushConnection) (pushStream, error) {
	opts := &websocket.DialOptions{}

	if conn.AccessToken != "" {
		opts.HTTPHeader = http.Header{
			"Authorization": []string{"Bearer " + conn.AccessToken},
		}
	}

	ws, _, err := websocket.Dial(ctx, conn.URL, opts)
	if err != nil {
		return nil, fmt.Errorf("syncer: dialing push connection: %w", err)
	}

	ws.SetReadLimit(maxPushFrameBytes)

	return &wsStream{conn: ws}, nil
}

// wsStream adapts a coder/websocket connection to pushStream.
type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) ReadMessage(ctx context.Context) ([]byte, error) {
	_, data, err := s.conn.Read(ctx)

	return data, err
}

func (s *wsStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
