package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/drawroom/mq"
)

type MockMQ struct {
	mock.Mock
}

func (m *MockMQ) Send(ctx context.Context, body string) error {
	return m.Called(ctx, body).Error(0)
}

func (m *MockMQ) Receive(ctx context.Context, visibilityTimeout int32) (*mq.Message, error) {
	args := m.Called(ctx, visibilityTimeout)
	msg, _ := args.Get(0).(*mq.Message)
	return msg, args.Error(1)
}

func (m *MockMQ) Delete(ctx context.Context, msg *mq.Message) error {
	return m.Called(ctx, msg).Error(0)
}

// SentBodies lists the bodies passed to Send, in call order.
func (m *MockMQ) SentBodies() []string {
	var bodies []string
	for _, call := range m.Calls {
		if call.Method == "Send" {
			bodies = append(bodies, call.Arguments.String(1))
		}
	}
	return bodies
}
