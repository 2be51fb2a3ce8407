package browser

import (
	"context"
	"errors"
)

// Connect opens a session and restores the saved login. When no valid
// session exists and login is non-nil, it is used to authenticate
// interactively; otherwise ErrNeedsLogin is returned. The session is
// closed on any failure.
func Connect(ctx context.Context, opts Options, login func(context.Context) error) (*Session, error) {
	s, err := Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	err = s.EnsureSession(ctx)
	if errors.Is(err, ErrNeedsLogin) && login != nil {
		err = s.Login(ctx, login)
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
