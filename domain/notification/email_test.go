package notification

import (
	"errors"
	"testing"
)

func TestShareNotice_Validate(t *testing.T) {
	valid := ShareNotice{
		To:       []Recipient{{Name: "John Doe", Address: "john@example.com"}},
		FileName: "result.m4a",
		URL:      "https://drive.google.com/file/d/abc/view",
	}

	tests := []struct {
		name    string
		modify  func(*ShareNotice)
		wantErr error
	}{
		{"valid notice", func(n *ShareNotice) {}, nil},
		{"no recipients", func(n *ShareNotice) { n.To = nil }, ErrNoRecipients},
		{"recipient without address", func(n *ShareNotice) { n.To = []Recipient{{Name: "John"}} }, ErrInvalidRecipient},
		{"cc without address", func(n *ShareNotice) { n.CC = []Recipient{{Name: "Jane"}} }, ErrInvalidRecipient},
		{"no url", func(n *ShareNotice) { n.URL = "" }, ErrNoShareURL},
		{
			name: "multiple recipients",
			modify: func(n *ShareNotice) {
				n.To = append(n.To, Recipient{Name: "Jane", Address: "jane@example.com"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := valid
			tt.modify(&n)
			if err := n.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRecipient(t *testing.T) {
	tests := []struct {
		input   string
		want    Recipient
		wantErr bool
	}{
		{"jane@example.com", Recipient{Address: "jane@example.com"}, false},
		{"Jane Doe <jane@example.com>", Recipient{Name: "Jane Doe", Address: "jane@example.com"}, false},
		{"  bob@example.org ", Recipient{Address: "bob@example.org"}, false},
		{"not an address", Recipient{}, true},
		{"", Recipient{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRecipient(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRecipient) {
					t.Errorf("ParseRecipient(%q) error = %v, want %v", tt.input, err, ErrInvalidRecipient)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRecipient(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseRecipient(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRecipients_StopsAtFirstInvalid(t *testing.T) {
	if _, err := ParseRecipients([]string{"a@example.com", "nope"}); !errors.Is(err, ErrInvalidRecipient) {
		t.Errorf("ParseRecipients() error = %v, want %v", err, ErrInvalidRecipient)
	}
	got, err := ParseRecipients([]string{"a@example.com", "B <b@example.com>"})
	if err != nil || len(got) != 2 || got[1].Name != "B" {
		t.Errorf("ParseRecipients() = %+v, %v", got, err)
	}
}

func TestRecipient_String(t *testing.T) {
	if got := (Recipient{Name: "Jane Doe", Address: "jane@example.com"}).String(); got != `"Jane Doe" <jane@example.com>` {
		t.Errorf("String() = %q", got)
	}
	if got := (Recipient{Address: "jane@example.com"}).String(); got != "<jane@example.com>" {
		t.Errorf("String() = %q", got)
	}
}
