package imap

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"
)

func TestFormatAddress(t *testing.T) {
	t.Run("formats address with personal name", func(t *testing.T) {
		address := &imap.Address{
			PersonalName: "John Doe",
			MailboxName:  "john",
			HostName:     "example.com",
		}

		result := formatAddress(address)
		expected := "John Doe <john@example.com>"
		if result != expected {
			t.Errorf("Expected %s, got %s", expected, result)
		}
	})

	t.Run("formats address without personal name", func(t *testing.T) {
		address := &imap.Address{
			MailboxName: "jane",
			HostName:    "example.com",
		}

		result := formatAddress(address)
		if result != "jane@example.com" {
			t.Errorf("Expected jane@example.com, got %s", result)
		}
	})

	t.Run("returns empty string for nil address", func(t *testing.T) {
		if result := formatAddress(nil); result != "" {
			t.Errorf("Expected empty string, got %s", result)
		}
	})

	t.Run("returns empty string for empty address", func(t *testing.T) {
		if result := formatAddress(&imap.Address{}); result != "" {
			t.Errorf("Expected empty string, got %s", result)
		}
	})
}

func TestFormatAddressList(t *testing.T) {
	t.Run("formats list of addresses", func(t *testing.T) {
		addresses := []*imap.Address{
			{
				MailboxName: "user1",
				HostName:    "example.com",
			},
			{
				PersonalName: "User Two",
				MailboxName:  "user2",
				HostName:     "example.com",
			},
		}

		result := formatAddressList(addresses)
		if len(result) != 2 {
			t.Fatalf("Expected 2 addresses, got %d", len(result))
		}
		if result[0] != "user1@example.com" {
			t.Errorf("Expected first address 'user1@example.com', got %s", result[0])
		}
		if result[1] != "User Two <user2@example.com>" {
			t.Errorf("Expected second address 'User Two <user2@example.com>', got %s", result[1])
		}
	})

	t.Run("skips empty addresses", func(t *testing.T) {
		addresses := []*imap.Address{
			{},
			{MailboxName: "user", HostName: "example.com"},
			nil,
		}

		result := formatAddressList(addresses)
		if len(result) != 1 {
			t.Fatalf("Expected 1 address, got %d", len(result))
		}
	})
}

func TestParseItem(t *testing.T) {
	t.Run("maps flags and envelope", func(t *testing.T) {
		date := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		msg := &imap.Message{
			Uid:   42,
			Flags: []string{imap.SeenFlag, imap.FlaggedFlag},
			Envelope: &imap.Envelope{
				Subject:   "Quarterly report",
				Date:      date,
				MessageId: "<report@example.com>",
				From: []*imap.Address{
					{PersonalName: "Alice", MailboxName: "alice", HostName: "example.com"},
				},
				To: []*imap.Address{
					{MailboxName: "bob", HostName: "example.com"},
				},
				Cc: []*imap.Address{
					{MailboxName: "carol", HostName: "example.com"},
				},
			},
		}

		item, err := ParseItem(msg)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		if item.UID != 42 {
			t.Errorf("Expected UID 42, got %d", item.UID)
		}
		if !item.Read || !item.Starred {
			t.Errorf("Expected read and starred, got read=%t starred=%t", item.Read, item.Starred)
		}
		if item.Subject != "Quarterly report" {
			t.Errorf("Expected subject 'Quarterly report', got %s", item.Subject)
		}
		if !item.Date.Equal(date) {
			t.Errorf("Expected date %v, got %v", date, item.Date)
		}
		if item.MessageID != "<report@example.com>" {
			t.Errorf("Expected message id '<report@example.com>', got %s", item.MessageID)
		}
		if item.From != "Alice <alice@example.com>" {
			t.Errorf("Expected from 'Alice <alice@example.com>', got %s", item.From)
		}
		if len(item.To) != 1 || item.To[0] != "bob@example.com" {
			t.Errorf("Expected to ['bob@example.com'], got %v", item.To)
		}
		if len(item.CC) != 1 || item.CC[0] != "carol@example.com" {
			t.Errorf("Expected cc ['carol@example.com'], got %v", item.CC)
		}
	})

	t.Run("message without envelope keeps zero values", func(t *testing.T) {
		item, err := ParseItem(&imap.Message{Uid: 7})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if item.UID != 7 {
			t.Errorf("Expected UID 7, got %d", item.UID)
		}
		if item.Subject != "" || item.From != "" {
			t.Errorf("Expected empty envelope fields, got subject=%q from=%q", item.Subject, item.From)
		}
	})

	t.Run("nil message is an error", func(t *testing.T) {
		if _, err := ParseItem(nil); err == nil {
			t.Error("Expected error for nil message")
		}
	})
}
