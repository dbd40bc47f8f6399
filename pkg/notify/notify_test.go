package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubNotifier struct {
	name string
	err  error
	sent []*Notice
}

func (s *stubNotifier) Send(_ context.Context, n *Notice) error {
	s.sent = append(s.sent, n)
	return s.err
}

func (s *stubNotifier) Name() string { return s.name }

func TestMulti(t *testing.T) {
	ok := &stubNotifier{name: "ok"}
	bad := &stubNotifier{name: "bad", err: errors.New("timeout")}
	m := NewMulti(ok, nil, bad)
	assert.Equal(t, 2, m.Len())

	notice := (&Notice{Title: "board"}).AddField("size", "50")
	err := m.Send(context.Background(), notice)

	assert.ErrorContains(t, err, "bad: timeout")
	assert.Len(t, ok.sent, 1)
	assert.Len(t, bad.sent, 1)
	assert.Equal(t, []Field{{Key: "size", Value: "50"}}, ok.sent[0].Fields)

	assert.ErrorIs(t, NewMulti().Send(context.Background(), notice), ErrNoNotifiers)
}
