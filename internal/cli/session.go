package cli

import (
	"context"
	"time"

	"github.com/BioHazard786/roomrelay/internal/client"
	"github.com/BioHazard786/roomrelay/internal/protocol"
)

const requestTimeout = 10 * time.Second

// connection is a relay client with its handler running.
type connection struct {
	Client  *client.Client
	Handler *client.Handler
}

func connect(ctx context.Context, serverURL string) (*connection, error) {
	c := client.New(serverURL)
	if err := c.Connect(ctx); err != nil {
		return nil, NewError("connect to relay", err)
	}
	h := client.NewHandler(c)
	go h.Start()
	return &connection{Client: c, Handler: h}, nil
}

func (c *connection) Close() {
	c.Client.Close()
}

// fetchRooms asks for the room list and waits for the reply.
func (c *connection) fetchRooms(ctx context.Context) ([]string, error) {
	if err := c.Client.GetRooms(); err != nil {
		return nil, NewError("request rooms", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	select {
	case rooms, ok := <-c.Handler.Rooms:
		if !ok {
			return nil, NewError("request rooms", ErrRelayClosed)
		}
		return rooms, nil
	case perr, ok := <-c.Handler.Errors:
		if !ok {
			return nil, NewError("request rooms", ErrRelayClosed)
		}
		return nil, relayError("request rooms", perr)
	case <-ctx.Done():
		return nil, NewError("request rooms", ErrTimeout)
	}
}

func relayError(op string, perr *protocol.Error) *Error {
	return NewError(op, perr)
}
