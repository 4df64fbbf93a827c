// cmd/desk/auth.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"librarydesk/internal/membership"
)

// readPassword reads a password with masking, or from LIBRARYDESK_PASSWORD
// when set.
func readPassword(prompt string) (string, error) {
	if pw, ok := os.LookupEnv("LIBRARYDESK_PASSWORD"); ok {
		return pw, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal; set LIBRARYDESK_PASSWORD")
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(string(pw), "\r\n"), nil
}

// login authenticates --username and returns a context carrying the session.
func (d *desk) login(ctx context.Context) (context.Context, membership.Session, error) {
	if d.username == "" {
		return nil, membership.Session{}, errors.New("--username is required for this command")
	}
	password, err := d.password(fmt.Sprintf("Password for %s: ", d.username))
	if err != nil {
		return nil, membership.Session{}, err
	}
	sess, err := d.app.Membership.Authenticate(ctx, d.username, password)
	if err != nil {
		return nil, membership.Session{}, err
	}
	return membership.ContextWithSession(ctx, *sess), *sess, nil
}

// loginAs authenticates and requires one of roles.
func (d *desk) loginAs(ctx context.Context, roles ...membership.Role) (context.Context, membership.Session, error) {
	ctx, sess, err := d.login(ctx)
	if err != nil {
		return nil, sess, err
	}
	if err := sess.Require(roles...); err != nil {
		return nil, sess, err
	}
	return ctx, sess, nil
}
