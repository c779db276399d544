package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrInvalidPayload is returned when a relayed payload is not valid JSON.
var ErrInvalidPayload = errors.New("relayed payload is not valid JSON")

// Framer is implemented by messages that write their own wire form.
//
// encoding/json compacts RawMessage fields, so relayed offers, answers and
// candidates splice their payload in as received instead.
type Framer interface {
	Frame() ([]byte, error)
}

func (m Offer) Frame() ([]byte, error) {
	w := newFrameWriter(m.Type)
	w.raw("sdp", m.SDP)
	return w.close()
}

func (m Answer) Frame() ([]byte, error) {
	w := newFrameWriter(m.Type)
	w.raw("sdp", m.SDP)
	w.str("receiverId", m.ReceiverID)
	return w.close()
}

func (m Candidate) Frame() ([]byte, error) {
	w := newFrameWriter(m.Type)
	w.raw("candidate", m.Candidate)
	if m.ReceiverID != "" {
		w.str("receiverId", m.ReceiverID)
	}
	return w.close()
}

// frameWriter builds a JSON object field by field. The first error sticks.
type frameWriter struct {
	buf bytes.Buffer
	err error
}

func newFrameWriter(typ MessageType) *frameWriter {
	w := &frameWriter{}
	w.buf.WriteByte('{')
	w.str("type", string(typ))
	return w
}

func (w *frameWriter) key(name string) {
	if w.buf.Len() > 1 {
		w.buf.WriteByte(',')
	}
	w.buf.WriteByte('"')
	w.buf.WriteString(name)
	w.buf.WriteString(`":`)
}

func (w *frameWriter) str(name, v string) {
	if w.err != nil {
		return
	}
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if w.err = enc.Encode(v); w.err != nil {
		return
	}
	w.key(name)
	w.buf.Write(bytes.TrimRight(b.Bytes(), "\n"))
}

func (w *frameWriter) raw(name string, v json.RawMessage) {
	if w.err != nil {
		return
	}
	w.key(name)
	if len(v) == 0 {
		w.buf.WriteString("null")
		return
	}
	if !json.Valid(v) {
		w.err = ErrInvalidPayload
		return
	}
	w.buf.Write(v)
}

func (w *frameWriter) close() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}
