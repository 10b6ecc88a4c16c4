package membership

import (
	"context"
	"errors"
	"os/user"
	"slices"
)

// Unix resolves membership from the host group database.
type Unix struct {
	lookupGroup func(name string) (*user.Group, error)
	lookupUser  func(username string) (*user.User, error)
}

// NewUnix returns a Unix backend using os/user.
func NewUnix() *Unix {
	return &Unix{lookupGroup: user.LookupGroup, lookupUser: user.Lookup}
}

// IsMember reports whether username has group among its group IDs.
// Unknown users and unknown groups are not members.
func (u *Unix) IsMember(_ context.Context, group, username string) (bool, error) {
	g, err := u.lookupGroup(group)
	if err != nil {
		var unknown user.UnknownGroupError
		if errors.As(err, &unknown) {
			return false, nil
		}
		return false, err
	}

	usr, err := u.lookupUser(username)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return false, nil
		}
		return false, err
	}

	gids, err := usr.GroupIds()
	if err != nil {
		return false, err
	}

	return slices.Contains(gids, g.Gid), nil
}

// Close is a no-op.
func (u *Unix) Close() error {
	return nil
}
