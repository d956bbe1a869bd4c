package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/Vovarama1992/line_tutor/internal/transcript"
)

// Apology is the only failure text a user ever sees.
const Apology = "I'm sorry, I'm a little tired. Can we talk again in a minute?"

var ErrAlreadyReplied = errors.New("reply already dispatched")

// Replier sends one text answer back to the user of an event.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

type ReplyFunc func(ctx context.Context, text string) error

func (f ReplyFunc) Reply(ctx context.Context, text string) error { return f(ctx, text) }

// Event is an inbound text message, already verified and parsed by a channel.
type Event struct {
	ID      string
	Channel string
	UserID  string
	Text    string
	Reply   Replier
}

type Archiver interface {
	Record(ctx context.Context, ex transcript.Exchange)
}

type singleUse struct {
	mu   sync.Mutex
	used bool
	next Replier
}

// SingleUse guards a reply handle so it reaches the platform at most once.
func SingleUse(r Replier) Replier {
	if s, ok := r.(*singleUse); ok {
		return s
	}
	return &singleUse{next: r}
}

func (s *singleUse) Reply(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used {
		return ErrAlreadyReplied
	}
	s.used = true
	return s.next.Reply(ctx, text)
}
