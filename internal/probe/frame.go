package probe

import "github.com/vmihailenco/msgpack/v5"

// Data channel frame kinds.
const (
	kindPing = "ping"
	kindPong = "pong"
)

// frame is exchanged over the probe data channel, msgpack encoded.
type frame struct {
	Kind    string `msgpack:"kind"`
	Seq     uint32 `msgpack:"seq"`
	Payload []byte `msgpack:"payload,omitempty"`
}

func encodeFrame(f frame) ([]byte, error) {
	return msgpack.Marshal(f)
}

func decodeFrame(data []byte) (frame, error) {
	var f frame
	err := msgpack.Unmarshal(data, &f)
	return f, err
}

// pong answers a ping with the same sequence number and payload.
func pong(ping frame) frame {
	return frame{Kind: kindPong, Seq: ping.Seq, Payload: ping.Payload}
}
