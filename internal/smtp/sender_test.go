package smtp

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumemail/plume/internal/testutil"
	"github.com/plumemail/plume/internal/transport"
)

func testMessage() transport.Composed {
	return transport.Composed{
		MessageID: "<abc123@plume.local>",
		From:      "Me <me@example.com>",
		To:        []string{"you@example.com"},
		Subject:   "Hello",
		BodyText:  "Plain text body",
	}
}

func TestAssemble(t *testing.T) {
	t.Run("plain text message", func(t *testing.T) {
		raw, err := assemble(testMessage())
		require.NoError(t, err)

		env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
		require.NoError(t, err)

		assert.Equal(t, "Hello", env.GetHeader("Subject"))

		from, err := env.AddressList("From")
		require.NoError(t, err)
		require.Len(t, from, 1)
		assert.Equal(t, "Me", from[0].Name)
		assert.Equal(t, "me@example.com", from[0].Address)

		to, err := env.AddressList("To")
		require.NoError(t, err)
		require.Len(t, to, 1)
		assert.Equal(t, "you@example.com", to[0].Address)

		assert.Equal(t, "<abc123@plume.local>", env.GetHeader("Message-Id"))
		assert.NotEmpty(t, env.GetHeader("Date"))
		assert.Equal(t, "Plain text body", strings.TrimSpace(env.Text))
		assert.Empty(t, env.HTML)
	})

	t.Run("alternative part when HTML is present", func(t *testing.T) {
		msg := testMessage()
		msg.BodyHTML = "<p>Rich body</p>"

		raw, err := assemble(msg)
		require.NoError(t, err)

		env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
		require.NoError(t, err)

		assert.Equal(t, "Plain text body", strings.TrimSpace(env.Text))
		assert.Equal(t, "<p>Rich body</p>", strings.TrimSpace(env.HTML))
	})

	t.Run("reply threading headers", func(t *testing.T) {
		msg := testMessage()
		msg.InReplyTo = "<parent@example.com>"
		msg.References = []string{"<root@example.com>", "<parent@example.com>"}

		raw, err := assemble(msg)
		require.NoError(t, err)

		env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
		require.NoError(t, err)

		assert.Equal(t, "<parent@example.com>", env.GetHeader("In-Reply-To"))
		assert.Equal(t, "<root@example.com> <parent@example.com>", env.GetHeader("References"))
	})

	t.Run("BCC recipients never appear in headers", func(t *testing.T) {
		msg := testMessage()
		msg.CC = []string{"cc@example.com"}
		msg.BCC = []string{"hidden@example.com"}

		raw, err := assemble(msg)
		require.NoError(t, err)

		env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
		require.NoError(t, err)

		cc, err := env.AddressList("Cc")
		require.NoError(t, err)
		require.Len(t, cc, 1)
		assert.Equal(t, "cc@example.com", cc[0].Address)
		assert.Empty(t, env.GetHeader("Bcc"))
		assert.NotContains(t, string(raw), "hidden@example.com")
	})

	t.Run("bare addresses without display names are accepted", func(t *testing.T) {
		msg := testMessage()
		msg.From = "me@example.com"
		msg.To = []string{"you@example.com", " "}

		raw, err := assemble(msg)
		require.NoError(t, err)

		env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
		require.NoError(t, err)
		to, err := env.AddressList("To")
		require.NoError(t, err)
		require.Len(t, to, 1)
		assert.Equal(t, "you@example.com", to[0].Address)
	})
}

func TestSend(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	defer server.Close()

	t.Run("delivers to the union of To, CC, and BCC", func(t *testing.T) {
		server.Backend.ClearMessages()
		sender := NewSender(server.Address, "user", "secret", false)

		msg := testMessage()
		msg.From = "me@example.com"
		msg.CC = []string{"cc@example.com"}
		msg.BCC = []string{"hidden@example.com"}

		require.NoError(t, sender.Send(context.Background(), msg))

		received := server.GetMessages()
		require.Len(t, received, 1)
		assert.Equal(t, "me@example.com", received[0].From)
		assert.ElementsMatch(t,
			[]string{"you@example.com", "cc@example.com", "hidden@example.com"},
			received[0].To)

		// The envelope carries the BCC recipient, the message body does not.
		assert.NotContains(t, string(received[0].Data), "hidden@example.com")
	})

	t.Run("works without credentials", func(t *testing.T) {
		server.Backend.ClearMessages()
		sender := NewSender(server.Address, "", "", false)

		msg := testMessage()
		msg.From = "me@example.com"
		require.NoError(t, sender.Send(context.Background(), msg))
		assert.Len(t, server.GetMessages(), 1)
	})

	t.Run("rejects a message without recipients", func(t *testing.T) {
		sender := NewSender(server.Address, "", "", false)

		msg := testMessage()
		msg.To = nil
		err := sender.Send(context.Background(), msg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no recipients")
	})

	t.Run("unreachable server maps to ErrUnavailable", func(t *testing.T) {
		sender := NewSender("127.0.0.1:1", "", "", false)

		err := sender.Send(context.Background(), testMessage())
		assert.ErrorIs(t, err, transport.ErrUnavailable)
	})

	t.Run("cancelled context aborts before dialing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		sender := NewSender(server.Address, "", "", false)
		err := sender.Send(ctx, testMessage())
		assert.ErrorIs(t, err, context.Canceled)
	})
}
