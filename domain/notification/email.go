package notification

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

// Recipient represents an email recipient with name and address
type Recipient struct {
	Name    string
	Address string
}

// String formats the recipient as an RFC 5322 address
func (r Recipient) String() string {
	return (&mail.Address{Name: r.Name, Address: r.Address}).String()
}

// ParseRecipient parses "Jane Doe <jane@example.com>" or a bare address
func ParseRecipient(s string) (Recipient, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return Recipient{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, s)
	}
	return Recipient{Name: addr.Name, Address: addr.Address}, nil
}

// ParseRecipients parses every entry, stopping at the first invalid one
func ParseRecipients(entries []string) ([]Recipient, error) {
	out := make([]Recipient, 0, len(entries))
	for _, e := range entries {
		r, err := ParseRecipient(e)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ShareNotice tells recipients that an extracted audio file is available
type ShareNotice struct {
	To         []Recipient
	CC         []Recipient
	FileName   string // e.g. "result.m4a"
	URL        string // shareable Google Drive link
	SizeBytes  int64
	SenderName string
}

// Validate checks that the notice has all required fields
func (n *ShareNotice) Validate() error {
	if len(n.To) == 0 {
		return ErrNoRecipients
	}
	for _, list := range [][]Recipient{n.To, n.CC} {
		for _, r := range list {
			if r.Address == "" {
				return ErrInvalidRecipient
			}
		}
	}
	if n.URL == "" {
		return ErrNoShareURL
	}
	return nil
}

// Notifier delivers share notices
type Notifier interface {
	Send(ctx context.Context, notice *ShareNotice) error
}
