package inbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
)

// IMAPConfig carries the connection settings for the monitored mailbox.
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// Sender filters the UNSEEN search, e.g. "venmo.com".
	Sender string
}

// IMAPInbox reads unread messages matching the sender filter from INBOX and
// marks them seen. Each Unread call opens a fresh connection; reconciliation
// passes are minutes apart and a held-open IMAP session is one more thing to
// keep alive.
type IMAPInbox struct {
	cfg IMAPConfig
}

func NewIMAPInbox(cfg IMAPConfig) *IMAPInbox {
	return &IMAPInbox{cfg: cfg}
}

// Unread returns the decoded unread messages plus the number of messages that
// could not be decoded. Undecodable messages are still marked seen, so callers
// must count them; they will not come back on the next pass.
func (i *IMAPInbox) Unread(ctx context.Context) ([]Message, int, error) {
	if i.cfg.Username == "" || i.cfg.Password == "" {
		return nil, 0, errors.New("imap credentials not configured")
	}

	addr := fmt.Sprintf("%s:%d", i.cfg.Host, i.cfg.Port)
	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Login(i.cfg.Username, i.cfg.Password).Wait(); err != nil {
		return nil, 0, fmt.Errorf("imap login: %w", err)
	}
	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return nil, 0, fmt.Errorf("select inbox: %w", err)
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	if i.cfg.Sender != "" {
		criteria.Header = []imap.SearchCriteriaHeaderField{{Key: "From", Value: i.cfg.Sender}}
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, 0, fmt.Errorf("search unseen: %w", err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		_ = client.Logout().Wait()
		return nil, 0, nil
	}

	uidSet := imap.UIDSetNum(uids...)
	section := &imap.FetchItemBodySection{}
	fetched, err := client.Fetch(uidSet, &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, 0, fmt.Errorf("fetch messages: %w", err)
	}

	var messages []Message
	var undecodable int
	for _, buf := range fetched {
		raw := buf.FindBodySection(section)
		if len(raw) == 0 {
			undecodable++
			continue
		}
		msg, err := decodeMessage(raw)
		if err != nil {
			// Keep going; one undecodable message must not block the rest.
			undecodable++
			continue
		}
		messages = append(messages, msg)
	}

	// Mark everything we fetched consumed so the next pass does not
	// re-process it. Settlement is idempotent either way.
	storeFlags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}
	if err := client.Store(uidSet, storeFlags, nil).Close(); err != nil {
		return messages, undecodable, fmt.Errorf("mark seen: %w", err)
	}

	if err := client.Logout().Wait(); err != nil {
		return messages, undecodable, nil
	}
	return messages, undecodable, nil
}

// decodeMessage pulls the subject and a text body out of a raw RFC 822
// message, preferring text/plain over text/html.
func decodeMessage(raw []byte) (Message, error) {
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return Message{}, fmt.Errorf("parse message: %w", err)
	}

	subject, err := reader.Header.Subject()
	if err != nil {
		subject = reader.Header.Get("Subject")
	}

	var plain, html string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := header.ContentType()
		if err != nil {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain") && plain == "":
			plain = string(body)
		case strings.HasPrefix(contentType, "text/html") && html == "":
			html = string(body)
		}
	}

	body := plain
	if body == "" {
		body = html
	}
	return Message{Subject: subject, Body: body}, nil
}
