package rtms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ProtocolVersion is sent in every handshake request.
const ProtocolVersion = 1

// Message types on the signaling and media connections.
const (
	MsgSignalingHandshakeReq  = 1
	MsgSignalingHandshakeResp = 2
	MsgMediaHandshakeReq      = 3
	MsgMediaHandshakeResp     = 4
	MsgClientReadyAck         = 7
	MsgKeepaliveReq           = 12
	MsgKeepaliveResp          = 13
)

// MediaTypeTranscript asks the media server for transcript payloads only.
const MediaTypeTranscript = 8

// StatusOK is the handshake acknowledgement status for success.
const StatusOK = 0

type signalingHandshake struct {
	MsgType         int    `json:"msg_type"`
	ProtocolVersion int    `json:"protocol_version"`
	MeetingUUID     string `json:"meeting_uuid"`
	StreamID        string `json:"rtms_stream_id"`
	Sequence        uint32 `json:"sequence"`
	Signature       string `json:"signature"`
}

type mediaHandshake struct {
	MsgType           int    `json:"msg_type"`
	ProtocolVersion   int    `json:"protocol_version"`
	MeetingUUID       string `json:"meeting_uuid"`
	StreamID          string `json:"rtms_stream_id"`
	Signature         string `json:"signature"`
	MediaType         int    `json:"media_type"`
	PayloadEncryption bool   `json:"payload_encryption"`
}

type clientReadyAck struct {
	MsgType  int    `json:"msg_type"`
	StreamID string `json:"rtms_stream_id"`
}

// KeepaliveMessage is both the request and the reply. Only MsgType differs.
type KeepaliveMessage struct {
	MsgType   int   `json:"msg_type"`
	Timestamp int64 `json:"timestamp"`
}

// inbound is the union of every control and content message the legs read.
type inbound struct {
	MsgType     number       `json:"msg_type"`
	StatusCode  number       `json:"status_code"`
	Reason      string       `json:"reason,omitempty"`
	Timestamp   number       `json:"timestamp"`
	MediaServer *mediaServer `json:"media_server,omitempty"`
	Content     *content     `json:"content,omitempty"`
}

type mediaServer struct {
	ServerURLs struct {
		All string `json:"all"`
	} `json:"server_urls"`
}

type content struct {
	UserName  string `json:"user_name,omitempty"`
	Data      string `json:"data"`
	Timestamp number `json:"timestamp,omitempty"`
}

// number accepts a JSON integer or a string holding one. Upstream senders
// are not consistent about quoting numeric fields.
type number int64

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	v, err := strconv.ParseInt(string(bytes.TrimSpace(data)), 10, 64)
	if err != nil {
		return fmt.Errorf("numeric field %s: %w", data, err)
	}
	*n = number(v)
	return nil
}

func (m inbound) mediaAddress() string {
	if m.MediaServer == nil {
		return ""
	}
	return m.MediaServer.ServerURLs.All
}

func (m inbound) text() string {
	if m.Content == nil {
		return ""
	}
	return m.Content.Data
}

// decodeInbound reports false when payload cannot be decoded as a control
// or content message.
func decodeInbound(payload []byte) (inbound, bool) {
	var msg inbound
	if err := json.Unmarshal(payload, &msg); err != nil {
		return inbound{}, false
	}
	return msg, true
}

// looksLikeObject separates malformed control messages from raw media that
// happens to arrive in a text frame.
func looksLikeObject(payload []byte) bool {
	payload = bytes.TrimSpace(payload)
	return len(payload) > 0 && payload[0] == '{'
}
