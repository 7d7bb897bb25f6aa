package presence

import (
	"context"
	"errors"
	"fmt"

	slackapi "github.com/slack-go/slack"

	"calstatus/internal/model"
)

// Setter pushes a status payload to the presence service on behalf of the
// user who owns credential.
type Setter interface {
	SetStatus(ctx context.Context, credential string, payload model.StatusPayload) error
}

// Slack sets the custom status through users.profile.set. Each call builds
// a client for the given user token.
type Slack struct {
	opts []slackapi.Option
}

// NewSlack creates a Slack setter. Options are passed to every client,
// e.g. slackapi.OptionAPIURL for tests.
func NewSlack(opts ...slackapi.Option) *Slack {
	return &Slack{opts: opts}
}

func (s *Slack) SetStatus(ctx context.Context, credential string, payload model.StatusPayload) error {
	if credential == "" {
		return errors.New("slack: empty user token")
	}
	client := slackapi.New(credential, s.opts...)
	if err := client.SetUserCustomStatusContext(ctx, payload.StatusText, payload.StatusEmoji, 0); err != nil {
		return fmt.Errorf("slack users.profile.set: %w", err)
	}
	return nil
}
