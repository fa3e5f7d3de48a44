// client.go
package email

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"RideLens/src/storage"
)

const (
	MaxFetchMessages   = 100            // cap per fetch, keeps memory bounded
	FetchBufferSize    = 10             // message channel buffer
	RecentMailDuration = 24 * time.Hour // how far back counts as "new"
)

// MailService is the mailbox access surface the dataset refresh runs on.
type MailService interface {
	Connect() error
	Disconnect()
	FetchUnreadEmails() ([]*Email, error)
}

// Email is a fetched message reduced to what the refresh needs.
type Email struct {
	UID         uint32
	Date        time.Time
	From        string
	Subject     string
	Attachments []*Attachment
}

// Attachment is one mail attachment, held in memory.
type Attachment struct {
	Filename string
	Content  []byte
}

// EmailClient is the IMAP implementation of MailService.
type EmailClient struct {
	server    string
	username  string
	password  string
	client    *client.Client
	mu        sync.Mutex
	connected bool
}

func NewEmailClient(server, username, password string) *EmailClient {
	return &EmailClient{
		server:   server,
		username: username,
		password: password,
	}
}

// Connect establishes a TLS connection and logs in. An existing live
// connection is reused.
func (s *EmailClient) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		if _, err := s.client.Capability(); err == nil {
			return nil
		}
		s.client.Logout()
		s.client = nil
	}

	c, err := client.DialTLS(s.server, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to mail server: %w", err)
	}

	if err := c.Login(s.username, s.password); err != nil {
		c.Logout()
		return fmt.Errorf("login failed: %w", err)
	}

	s.client = c
	s.connected = true
	return nil
}

func (s *EmailClient) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Logout()
		s.client = nil
	}
	s.connected = false
}

// FetchUnreadEmails returns unread messages from the last day.
func (s *EmailClient) FetchUnreadEmails() ([]*Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, fmt.Errorf("not connected to mail server")
	}

	if _, err := s.client.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("failed to select inbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = time.Now().Add(-RecentMailDuration)

	ids, err := s.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("mail search failed: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	if len(ids) > MaxFetchMessages {
		ids = ids[:MaxFetchMessages]
	}

	return s.fetchMessages(ids)
}

func (s *EmailClient) fetchMessages(ids []uint32) ([]*Email, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchInternalDate,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, FetchBufferSize)
	done := make(chan error, 1)

	go func() {
		done <- s.client.Fetch(seqset, items, messages)
	}()

	var emails []*Email
	for msg := range messages {
		email, err := s.parseEmail(msg, section)
		if err != nil {
			log.Printf("failed to parse message: %v", err)
			continue
		}
		emails = append(emails, email)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return emails, nil
}

func (s *EmailClient) parseEmail(msg *imap.Message, section *imap.BodySectionName) (*Email, error) {
	r := msg.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("message has no body")
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail reader: %w", err)
	}

	header := mr.Header
	date, _ := header.Date() // a bad date does not block attachment handling

	email := &Email{
		UID:     msg.Uid,
		Date:    date,
		From:    decodeHeader(header.Get("From")),
		Subject: decodeHeader(header.Get("Subject")),
	}

	if err := s.parseEmailParts(mr, email); err != nil {
		return nil, err
	}

	return email, nil
}

func (s *EmailClient) parseEmailParts(mr *mail.Reader, email *Email) error {
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("failed to read mail part: %v", err)
			break
		}

		if h, ok := p.Header.(*mail.AttachmentHeader); ok {
			if err := s.parseAttachment(h, p.Body, email); err != nil {
				log.Printf("failed to parse attachment: %v", err)
			}
		}
	}
	return nil
}

func (s *EmailClient) parseAttachment(h *mail.AttachmentHeader, body io.Reader, email *Email) error {
	filename, err := h.Filename()
	if err != nil || filename == "" {
		return fmt.Errorf("invalid attachment name")
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return fmt.Errorf("failed to read attachment: %w", err)
	}

	email.Attachments = append(email.Attachments, &Attachment{
		Filename: decodeHeader(filename),
		Content:  buf.Bytes(),
	})
	return nil
}

// decodeHeader decodes RFC 2047 encoded-words, returning the raw header when
// decoding fails.
func decodeHeader(header string) string {
	decoder := mime.WordDecoder{}
	decoded, err := decoder.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// CheckAndProcessEmails polls the mailbox and returns the newest unread
// message whose subject matches the dataset mail keyword, or nil when there
// is nothing to do.
func CheckAndProcessEmails(mailService MailService, subject string, logger *storage.Logger) (*Email, error) {
	startTime := time.Now()
	logger.Info("checking mailbox for dataset updates...")

	if err := mailService.Connect(); err != nil {
		return nil, fmt.Errorf("mailbox connection failed: %w", err)
	}
	defer mailService.Disconnect()

	emails, err := mailService.FetchUnreadEmails()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mail: %w", err)
	}

	if len(emails) == 0 {
		logger.Info("no new mail")
		return nil, nil
	}

	targetEmail := filterLatestTargetEmail(emails, subject)
	if targetEmail == nil {
		logger.Info("no dataset mail found")
		return nil, nil
	}

	logger.Info(fmt.Sprintf("mailbox check done in %v", time.Since(startTime)))
	return targetEmail, nil
}

// filterLatestTargetEmail picks the newest message whose subject contains the
// keyword.
func filterLatestTargetEmail(emails []*Email, keyword string) *Email {
	var targetEmails []*Email
	for _, email := range emails {
		if strings.Contains(email.Subject, keyword) {
			targetEmails = append(targetEmails, email)
		}
	}

	if len(targetEmails) == 0 {
		return nil
	}

	sort.Slice(targetEmails, func(i, j int) bool {
		return targetEmails[i].Date.After(targetEmails[j].Date)
	})

	return targetEmails[0]
}
