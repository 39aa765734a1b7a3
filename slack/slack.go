// Package slack posts recommendations to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"canteenadvisor"
)

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	webhookURL string
	httpClient doer
}

func NewClient(webhookURL string, httpClient doer) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(map[string]any{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}

// PostRecommendation formats res and posts it to channel.
func PostRecommendation(ctx context.Context, client canteenadvisor.SlackClient, channel string, intent canteenadvisor.UserIntent, res canteenadvisor.RecommendationResult) error {
	return client.PostMessage(ctx, channel, FormatRecommendation(intent, res))
}

// FormatRecommendation renders a result as Slack mrkdwn.
func FormatRecommendation(intent canteenadvisor.UserIntent, res canteenadvisor.RecommendationResult) string {
	var b strings.Builder

	title := fmt.Sprintf("*%s picks*", intent.MealSlot)
	if intent.Goal != "" {
		title += fmt.Sprintf(" for _%s_", intent.Goal)
	}
	b.WriteString(title + "\n")

	if len(res.Items) == 0 {
		b.WriteString(res.Reasoning + "\n")
		if res.Tips != "" {
			b.WriteString("> " + res.Tips + "\n")
		}
		return b.String()
	}

	for i, it := range res.Items {
		fmt.Fprintf(&b, "%d. *%s* (%s) %.0f kcal, ¥%.2f\n", i+1, it.Name, it.Canteen, it.Nutrition.Calories, it.Price)
	}

	n := res.Nutrition
	fmt.Fprintf(&b, "Total: %.0f kcal, protein %.1fg, carbs %.1fg, fat %.1fg\n", n.Calories, n.Protein, n.Carbs, n.Fat)
	if res.Reasoning != "" {
		b.WriteString("\n" + res.Reasoning + "\n")
	}
	if res.Tips != "" {
		b.WriteString("> " + res.Tips + "\n")
	}
	return b.String()
}
