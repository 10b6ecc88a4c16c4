// Package membership answers whether a user belongs to a named group.
//
// It backs admin authorization. Three backends are provided: a casbin
// policy file, an LDAP directory and the local unix group database.
package membership

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// DriverCasbin reads grouping rules from a casbin policy file.
	DriverCasbin = "casbin"
	// DriverLDAP searches an LDAP directory.
	DriverLDAP = "ldap"
	// DriverUnix reads the operating system group database.
	DriverUnix = "unix"
)

// ErrUnknownDriver indicates an unsupported membership driver.
var ErrUnknownDriver = errors.New("membership: unknown driver")

// GroupMembership reports group membership.
type GroupMembership interface {
	io.Closer
	IsMember(ctx context.Context, group, username string) (bool, error)
}

// FactoryOptions groups configuration for membership drivers.
type FactoryOptions struct {
	Casbin CasbinOptions
	LDAP   LDAPOptions
}

// NewFromDriver constructs a GroupMembership implementation by driver name.
func NewFromDriver(driver string, opts FactoryOptions) (GroupMembership, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverCasbin:
		return NewCasbin(opts.Casbin)
	case DriverLDAP:
		return NewLDAP(opts.LDAP)
	case DriverUnix:
		return NewUnix(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
