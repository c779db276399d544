// Package probe checks a relay end to end: it opens a room, joins receivers,
// negotiates a WebRTC data channel to each of them through the relay and
// measures round trips over it.
package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/roomrelay/internal/client"
	"github.com/BioHazard786/roomrelay/internal/protocol"
)

// Options configures a probe run. Zero values take the defaults below.
type Options struct {
	ServerURL   string
	STUNServers []string
	Receivers   int
	Pings       int
	PayloadSize int
	Timeout     time.Duration

	Logger    *slog.Logger
	PionLog   io.Writer
	PionLevel logging.LogLevel
}

const (
	DefaultReceivers   = 1
	DefaultPings       = 5
	DefaultPayloadSize = 32
	DefaultTimeout     = 30 * time.Second
)

func (o *Options) defaults() {
	if o.Receivers <= 0 {
		o.Receivers = DefaultReceivers
	}
	if o.Pings <= 0 {
		o.Pings = DefaultPings
	}
	if o.PayloadSize < 0 {
		o.PayloadSize = 0
	} else if o.PayloadSize == 0 {
		o.PayloadSize = DefaultPayloadSize
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.PionLog == nil {
		o.PionLog = os.Stderr
	}
	if o.PionLevel == logging.LogLevelDisabled {
		o.PionLevel = logging.LogLevelError
	}
}

// session is one relay connection with its message router.
type session struct {
	c *client.Client
	h *client.Handler
}

func dial(ctx context.Context, url string) (*session, error) {
	c := client.New(url)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	h := client.NewHandler(c)
	go h.Start()
	return &session{c: c, h: h}, nil
}

func (s *session) close() { s.c.Close() }

// link is the sender's side of one receiver's data channel.
type link struct {
	*peer
	dc *webrtc.DataChannel

	opened chan struct{}
	failed chan struct{}
	pongs  chan frame
}

// Run performs one probe. A non-nil error means the room could not be set
// up; per-receiver failures are reported in the Report.
func Run(ctx context.Context, opts Options) (*Report, error) {
	opts.defaults()
	log := opts.Logger

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	started := time.Now()
	api := newAPI(opts.PionLog, opts.PionLevel)

	sender, err := dial(ctx, opts.ServerURL)
	if err != nil {
		return nil, newError("connect sender", err)
	}
	defer sender.close()

	if err := sender.c.CreateRoom(); err != nil {
		return nil, newError("create room", err)
	}
	roomID, err := await(ctx, sender.h.RoomCreated, sender.h.Errors)
	if err != nil {
		return nil, newError("create room", err)
	}
	log.Info("probe.room", "room", roomID)

	ids := make([]string, opts.Receivers)
	receivers := make([]*session, opts.Receivers)
	for i := range ids {
		ids[i] = fmt.Sprintf("probe-%d-%s", i+1, uuid.NewString()[:8])
		rs, err := dial(ctx, opts.ServerURL)
		if err != nil {
			return nil, newReceiverError("connect", ids[i], err)
		}
		defer rs.close()
		receivers[i] = rs

		if err := rs.c.Join(roomID, ids[i]); err != nil {
			return nil, newReceiverError("join", ids[i], err)
		}
		// The relay decides how many receivers fit; ROOM_FULL surfaces here.
		if err := waitJoined(ctx, sender, rs, i+1); err != nil {
			return nil, newReceiverError("join", ids[i], err)
		}
	}
	log.Info("probe.joined", "room", roomID, "receivers", len(ids))

	// Receivers answer offers and echo pings until the measurements are done.
	answerCtx, stopAnswering := context.WithCancel(ctx)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		rxErr   = make(map[string]error)
		results = make([]Result, len(ids))
	)
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := serveReceiver(answerCtx, api, opts, roomID, id, receivers[i]); err != nil {
				log.Warn("probe.receiver", "receiver", id, "err", err)
				mu.Lock()
				rxErr[id] = err
				mu.Unlock()
			}
		}()
	}
	defer func() {
		stopAnswering()
		wg.Wait()
	}()

	links := make(map[string]*link, len(ids))
	for _, id := range ids {
		l, err := newLink(api, id, opts.STUNServers)
		if err != nil {
			return nil, err
		}
		defer l.close()
		l.onCandidate(func(c webrtc.ICECandidateInit) error {
			return sender.c.SendCandidate(roomID, id, c)
		})
		links[id] = l
	}
	go routeToLinks(answerCtx, log, sender.h, links)

	var mwg sync.WaitGroup
	for i, id := range ids {
		l := links[id]
		offer, err := l.createOffer()
		if err != nil {
			results[i] = Result{ReceiverID: id, Err: err}
			continue
		}
		offeredAt := time.Now()
		if err := sender.c.SendOffer(roomID, id, offer); err != nil {
			results[i] = Result{ReceiverID: id, Err: newReceiverError("send offer", id, err)}
			continue
		}

		mwg.Add(1)
		go func() {
			defer mwg.Done()
			results[i] = measure(ctx, l, offeredAt, opts.Pings, opts.PayloadSize)
		}()
	}
	mwg.Wait()
	stopAnswering()
	wg.Wait()

	for i := range results {
		if results[i].Err == nil {
			continue
		}
		if err, ok := rxErr[results[i].ReceiverID]; ok {
			results[i].Err = err
		}
	}

	return &Report{RoomID: roomID, Elapsed: time.Since(started), Results: results}, nil
}

func newLink(api *webrtc.API, id string, stun []string) (*link, error) {
	p, err := newPeer(api, id, stun)
	if err != nil {
		return nil, err
	}

	dc, err := p.pc.CreateDataChannel(dataChannelLabel, nil)
	if err != nil {
		p.close()
		return nil, newReceiverError("create data channel", id, err)
	}

	l := &link{
		peer:   p,
		dc:     dc,
		opened: make(chan struct{}),
		failed: make(chan struct{}),
		pongs:  make(chan frame, 16),
	}

	var openOnce, failOnce sync.Once
	dc.OnOpen(func() {
		openOnce.Do(func() { close(l.opened) })
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		f, err := decodeFrame(msg.Data)
		if err != nil || f.Kind != kindPong {
			return
		}
		select {
		case l.pongs <- f:
		default:
		}
	})
	p.pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		if state == webrtc.ICEConnectionStateFailed {
			failOnce.Do(func() { close(l.failed) })
		}
	})
	return l, nil
}

// routeToLinks feeds relayed answers and candidates to the matching link.
func routeToLinks(ctx context.Context, log *slog.Logger, h *client.Handler, links map[string]*link) {
	for {
		select {
		case sig, ok := <-h.Answers:
			if !ok {
				return
			}
			if l, found := links[sig.ReceiverID]; found {
				if err := l.acceptAnswer(sig.Payload); err != nil {
					log.Warn("probe.answer", "err", err)
				}
			}

		case sig, ok := <-h.Candidates:
			if !ok {
				return
			}
			if l, found := links[sig.ReceiverID]; found {
				if err := l.addCandidate(sig.Payload); err != nil {
					log.Debug("probe.candidate", "err", err)
				}
			}

		case perr, ok := <-h.Errors:
			if !ok {
				return
			}
			log.Warn("probe.relay_error", "code", perr.Code, "msg", perr.Message)

		case <-h.ReceiverIDs:
		case <-h.Rooms:

		case <-ctx.Done():
			return
		}
	}
}

// measure waits for the data channel and then sends pings one at a time.
func measure(ctx context.Context, l *link, offeredAt time.Time, pings, size int) Result {
	res := Result{ReceiverID: l.id}

	select {
	case <-l.opened:
		res.Connected = time.Since(offeredAt)
	case <-l.failed:
		res.Err = newReceiverError("connect", l.id, ErrICEFailed)
		return res
	case <-ctx.Done():
		res.Err = newReceiverError("open data channel", l.id, ErrTimeout)
		return res
	}

	payload := make([]byte, size)
	for seq := uint32(0); seq < uint32(pings); seq++ {
		data, err := encodeFrame(frame{Kind: kindPing, Seq: seq, Payload: payload})
		if err != nil {
			res.Err = newReceiverError("encode ping", l.id, err)
			return res
		}

		sent := time.Now()
		if err := l.dc.Send(data); err != nil {
			res.Err = newReceiverError("send ping", l.id, err)
			return res
		}
		if err := waitPong(ctx, l, seq); err != nil {
			res.Err = err
			return res
		}
		res.RTTs = append(res.RTTs, time.Since(sent))
	}
	return res
}

func waitPong(ctx context.Context, l *link, seq uint32) error {
	for {
		select {
		case f := <-l.pongs:
			if f.Seq == seq {
				return nil
			}
		case <-l.failed:
			return newReceiverError("ping", l.id, ErrICEFailed)
		case <-ctx.Done():
			return newReceiverError("ping", l.id, ErrTimeout)
		}
	}
}

// serveReceiver plays one receiver: it answers the relayed offer, applies
// candidates and echoes pings back as pongs.
func serveReceiver(ctx context.Context, api *webrtc.API, opts Options, roomID, id string, s *session) error {
	p, err := newPeer(api, id, opts.STUNServers)
	if err != nil {
		return err
	}
	defer p.close()

	p.onCandidate(func(c webrtc.ICECandidateInit) error {
		return s.c.SendCandidate(roomID, "", c)
	})
	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != dataChannelLabel {
			return
		}
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			f, err := decodeFrame(msg.Data)
			if err != nil || f.Kind != kindPing {
				return
			}
			if data, err := encodeFrame(pong(f)); err == nil {
				_ = dc.Send(data)
			}
		})
	})

	for {
		select {
		case sig, ok := <-s.h.Offers:
			if !ok {
				return newReceiverError("signaling", id, ErrRelayClosed)
			}
			answer, err := p.answer(sig.Payload)
			if err != nil {
				return err
			}
			if err := s.c.SendAnswer(answer); err != nil {
				return newReceiverError("send answer", id, err)
			}

		case sig, ok := <-s.h.Candidates:
			if !ok {
				return newReceiverError("signaling", id, ErrRelayClosed)
			}
			if err := p.addCandidate(sig.Payload); err != nil {
				opts.Logger.Debug("probe.candidate", "receiver", id, "err", err)
			}

		case <-s.h.SenderGone:
			return newReceiverError("signaling", id, ErrSenderGone)

		case perr, ok := <-s.h.Errors:
			if !ok {
				return newReceiverError("signaling", id, ErrRelayClosed)
			}
			return newReceiverError("signaling", id, perr)

		case <-s.h.Rooms:

		case <-ctx.Done():
			return nil
		}
	}
}

// waitJoined returns once the sender sees n receivers, or with the relay's
// reply if the joining receiver was refused.
func waitJoined(ctx context.Context, sender, rs *session, n int) error {
	for {
		select {
		case ids, ok := <-sender.h.ReceiverIDs:
			if !ok {
				return ErrRelayClosed
			}
			if len(ids) >= n {
				return nil
			}
		case perr, ok := <-rs.h.Errors:
			if !ok {
				return ErrRelayClosed
			}
			return perr
		case perr, ok := <-sender.h.Errors:
			if !ok {
				return ErrRelayClosed
			}
			return perr
		case <-ctx.Done():
			return ErrTimeout
		}
	}
}

// await returns the next value from ch, or the first relay error.
func await[T any](ctx context.Context, ch <-chan T, errs <-chan *protocol.Error) (T, error) {
	var zero T
	select {
	case v, ok := <-ch:
		if !ok {
			return zero, ErrRelayClosed
		}
		return v, nil
	case perr, ok := <-errs:
		if !ok {
			return zero, ErrRelayClosed
		}
		return zero, perr
	case <-ctx.Done():
		return zero, ErrTimeout
	}
}
