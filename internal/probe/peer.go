package probe

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

const dataChannelLabel = "relay-probe"

// newAPI builds a pion API whose internal logs go to w at the given level.
// Loopback candidates are enabled so a probe against a local relay connects
// without any network interface up.
func newAPI(w io.Writer, level logging.LogLevel) *webrtc.API {
	lf := logging.NewDefaultLoggerFactory()
	lf.Writer = w
	lf.DefaultLogLevel = level

	se := webrtc.SettingEngine{LoggerFactory: lf}
	se.SetIncludeLoopbackCandidate(true)
	return webrtc.NewAPI(webrtc.WithSettingEngine(se))
}

// peer wraps one PeerConnection and holds back remote candidates until the
// remote description is set.
type peer struct {
	id string
	pc *webrtc.PeerConnection

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

func newPeer(api *webrtc.API, id string, stun []string) (*peer, error) {
	var servers []webrtc.ICEServer
	if len(stun) > 0 {
		servers = []webrtc.ICEServer{{URLs: stun}}
	}
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, newReceiverError("create peer connection", id, err)
	}
	return &peer{id: id, pc: pc}, nil
}

// onCandidate forwards each local candidate through send.
func (p *peer) onCandidate(send func(webrtc.ICECandidateInit) error) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		_ = send(c.ToJSON())
	})
}

func (p *peer) createOffer() (*webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, newReceiverError("create offer", p.id, err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, newReceiverError("set local description", p.id, err)
	}
	return p.pc.LocalDescription(), nil
}

// answer applies a relayed offer and returns the local answer.
func (p *peer) answer(raw json.RawMessage) (*webrtc.SessionDescription, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &offer); err != nil {
		return nil, newReceiverError("parse offer", p.id, err)
	}
	if offer.Type != webrtc.SDPTypeOffer {
		return nil, newReceiverError("parse offer", p.id, ErrUnexpectedSDP)
	}
	if err := p.setRemote(offer); err != nil {
		return nil, err
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, newReceiverError("create answer", p.id, err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, newReceiverError("set local description", p.id, err)
	}
	return p.pc.LocalDescription(), nil
}

// acceptAnswer applies a relayed answer.
func (p *peer) acceptAnswer(raw json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &answer); err != nil {
		return newReceiverError("parse answer", p.id, err)
	}
	if answer.Type != webrtc.SDPTypeAnswer {
		return newReceiverError("parse answer", p.id, ErrUnexpectedSDP)
	}
	return p.setRemote(answer)
}

func (p *peer) setRemote(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return newReceiverError("set remote description", p.id, err)
	}
	p.remoteSet = true
	for _, c := range p.pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			return newReceiverError("add ICE candidate", p.id, err)
		}
	}
	p.pending = nil
	return nil
}

// addCandidate applies a relayed candidate, or queues it while the remote
// description is still missing.
func (p *peer) addCandidate(raw json.RawMessage) error {
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &c); err != nil {
		return newReceiverError("parse ICE candidate", p.id, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.remoteSet {
		p.pending = append(p.pending, c)
		return nil
	}
	if err := p.pc.AddICECandidate(c); err != nil {
		return newReceiverError("add ICE candidate", p.id, err)
	}
	return nil
}

func (p *peer) close() {
	_ = p.pc.Close()
}
