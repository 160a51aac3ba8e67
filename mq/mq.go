package mq

import "context"

type MessageQueue interface {
	Send(ctx context.Context, body string) error
	// Receive long-polls for one message. It returns nil, nil when the poll
	// ends empty.
	Receive(ctx context.Context, visibilityTimeout int32) (*Message, error)
	Delete(ctx context.Context, msg *Message) error
}

// Message Id is the receipt handle needed to delete it.
type Message struct {
	Id   string
	Body string
}
