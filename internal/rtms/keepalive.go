package rtms

// KeepaliveReply builds the answer to a keepalive request, echoing its timestamp.
// Both legs use it unchanged.
func KeepaliveReply(requestTimestamp int64) KeepaliveMessage {
	return KeepaliveMessage{MsgType: MsgKeepaliveResp, Timestamp: requestTimestamp}
}
