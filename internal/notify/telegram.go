package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const DefaultTelegramAPI = "https://api.telegram.org"

// Sender delivers one text message to one chat.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

var ErrDisabled = errors.New("telegram disabled")

// DeliveryError is returned when the chat API answered but refused the message.
type DeliveryError struct {
	Status      int
	Description string
}

func (e *DeliveryError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram: HTTP %d", e.Status)
	}
	return fmt.Sprintf("telegram: HTTP %d: %s", e.Status, e.Description)
}

// Temporary reports whether a retry could succeed.
func (e *DeliveryError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type Telegram struct {
	APIURL string
	Token  string
	Client *http.Client
}

// NewTelegram returns nil when token is empty.
func NewTelegram(apiURL, token string) *Telegram {
	if token == "" {
		return nil
	}
	if apiURL == "" {
		apiURL = DefaultTelegramAPI
	}
	return &Telegram{
		APIURL: strings.TrimRight(apiURL, "/"),
		Token:  token,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

type telegramPayload struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, chatID, text string) error {
	if t == nil || t.Token == "" {
		return ErrDisabled
	}
	body, err := json.Marshal(telegramPayload{ChatID: chatID, Text: text, DisableWebPagePreview: true})
	if err != nil {
		return errors.Wrap(err, "encode telegram message")
	}
	endpoint := t.APIURL + "/bot" + t.Token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		// the url carries the token, keep it out of the message
		return errors.Wrapf(unwrapURLError(err), "send telegram message to chat %s", chatID)
	}
	defer resp.Body.Close()

	var out telegramResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode/100 != 2 || !out.OK {
		return errors.WithStack(&DeliveryError{Status: resp.StatusCode, Description: out.Description})
	}
	return nil
}

func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}
