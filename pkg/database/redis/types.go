package redis

// Message Pub/Sub 消息
type Message struct {
	Channel string
	Payload string
}
