package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// TwilioNotifier sends SMS and places voice calls through the Twilio REST
// API. Which channels fire depends on the alert tier.
type TwilioNotifier struct {
	Client     *http.Client
	AccountSID string
	AuthToken  string
	FromNumber string
	SMSTo      string
	VoiceTo    string
}

func (n *TwilioNotifier) Send(ctx context.Context, tier string, summary string) error {
	switch tier {
	case AlertTierVoiceSMS:
		if err := n.sendVoice(ctx, summary); err != nil {
			return err
		}
		return n.sendSMS(ctx, summary)
	case AlertTierSMS:
		return n.sendSMS(ctx, summary)
	default:
		return nil
	}
}

func (n *TwilioNotifier) sendSMS(ctx context.Context, body string) error {
	if n.SMSTo == "" || n.FromNumber == "" {
		return nil
	}
	form := url.Values{}
	form.Set("To", n.SMSTo)
	form.Set("From", n.FromNumber)
	form.Set("Body", body)
	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", n.AccountSID)
	return n.post(ctx, endpoint, form)
}

func (n *TwilioNotifier) sendVoice(ctx context.Context, summary string) error {
	if n.VoiceTo == "" || n.FromNumber == "" {
		return nil
	}
	form := url.Values{}
	form.Set("To", n.VoiceTo)
	form.Set("From", n.FromNumber)
	form.Set("Twiml", voiceTwiml(summary))
	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Calls.json", n.AccountSID)
	return n.post(ctx, endpoint, form)
}

func (n *TwilioNotifier) post(ctx context.Context, endpoint string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(n.AccountSID, n.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("twilio request failed. status=%d", resp.StatusCode)
	}
	return nil
}

func voiceTwiml(summary string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Say voice="Polly.Joanna">Compliance alert. %s</Say>
</Response>`, xmlEscape(summary))
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}
