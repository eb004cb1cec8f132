package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type SlackNotifier struct {
	SlackWebhookURL string
	// defaults to http.DefaultClient
	Client *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

func (n *SlackNotifier) SendDecision(ctx context.Context, r *Result) error {
	if r.Logger != nil {
		r.Logger.Debug("sending slack notification")
	}
	return n.sendSlackMsg(ctx, slackBody(r))
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK || string(respBody) != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

func slackBody(r *Result) string {
	var sb strings.Builder
	sb.WriteString("⚠️ Automod Enforcement ⚠️\n")
	fmt.Fprintf(&sb, "User `%s`: *%s*", r.UserID, r.Action)
	if r.Escalated {
		fmt.Fprintf(&sb, " (escalated from %s)", r.BaseAction)
	}
	sb.WriteString("\n")
	if r.Duration > 0 {
		fmt.Fprintf(&sb, "Duration: %s\n", r.Duration)
	}
	if r.Context.ChannelID != "" {
		fmt.Fprintf(&sb, "Channel: `%s` (%s)\n", r.Context.ChannelID, r.Context.ChannelType)
	}
	if cats := r.Analysis.FlaggedCategories(); len(cats) > 0 {
		fmt.Fprintf(&sb, "Categories: `%s`\n", strings.Join(cats, ", "))
	}
	fmt.Fprintf(&sb, "Severity: %.2f (adjusted %.2f), strike weight %.2f\n", r.Severity, r.AdjustedSeverity, r.StrikeWeight)
	return sb.String()
}
