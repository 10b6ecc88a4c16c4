package membership

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// LDAPOptions configures the LDAP backend.
type LDAPOptions struct {
	URL          string
	BindDN       string
	BindPassword string
	BaseDN       string
	// GroupFilter is a filter with two %s verbs: group name, then username.
	// Both are escaped before substitution.
	GroupFilter        string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// DefaultGroupFilter matches posixGroup entries listing the user in memberUid.
const DefaultGroupFilter = "(&(objectClass=posixGroup)(cn=%s)(memberUid=%s))"

// LDAP resolves membership by searching a directory. A connection is dialed
// per lookup; admin checks are infrequent.
type LDAP struct {
	opts LDAPOptions
	dial func(url string) (ldapConn, error)
}

type ldapConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	SetTimeout(time.Duration)
	Close() error
}

// NewLDAP validates opts. No connection is made until the first lookup.
func NewLDAP(opts LDAPOptions) (*LDAP, error) {
	if opts.URL == "" || opts.BaseDN == "" {
		return nil, errors.New("membership: ldap url and base dn are required")
	}
	if opts.GroupFilter == "" {
		opts.GroupFilter = DefaultGroupFilter
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	l := &LDAP{opts: opts}
	l.dial = func(url string) (ldapConn, error) {
		return ldap.DialURL(url,
			ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}), //nolint:gosec // operator opt-in for lab directories
		)
	}

	return l, nil
}

// IsMember searches for a group entry named group that lists username.
func (l *LDAP) IsMember(ctx context.Context, group, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	conn, err := l.dial(l.opts.URL)
	if err != nil {
		return false, fmt.Errorf("membership: ldap dial: %w", err)
	}
	defer conn.Close()

	timeout := l.opts.Timeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	conn.SetTimeout(timeout)

	if l.opts.BindDN != "" {
		if err := conn.Bind(l.opts.BindDN, l.opts.BindPassword); err != nil {
			return false, fmt.Errorf("membership: ldap bind: %w", err)
		}
	}

	req := ldap.NewSearchRequest(
		l.opts.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, int(timeout/time.Second), false,
		fmt.Sprintf(l.opts.GroupFilter, ldap.EscapeFilter(group), ldap.EscapeFilter(username)),
		[]string{"dn"},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
			return true, nil
		}
		return false, fmt.Errorf("membership: ldap search: %w", err)
	}

	return len(res.Entries) > 0, nil
}

// Close is a no-op; connections are per lookup.
func (l *LDAP) Close() error {
	return nil
}
