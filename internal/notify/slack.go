// Package notify tells operators when an interview report is ready.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/recruitx/recruitx/internal/interview"
)

const postTimeout = 10 * time.Second

// Slack posts report summaries to an incoming webhook.
type Slack struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewSlack(webhookURL string, logger *slog.Logger) *Slack {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slack{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: postTimeout},
		logger:     logger,
	}
}

// ReportReady posts a summary of n. Failures are logged and dropped.
func (s *Slack) ReportReady(ctx context.Context, n interview.Notice) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postTimeout)
	defer cancel()

	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.httpClient, message(n)); err != nil {
		s.logger.Warn("slack notification failed", "interview_id", n.InterviewID, "error", err)
		return
	}
	s.logger.Debug("slack notification sent", "interview_id", n.InterviewID)
}

func message(n interview.Notice) *slack.WebhookMessage {
	name := n.CandidateName
	if name == "" {
		name = "Candidate"
	}
	rep := n.Report
	headline := fmt.Sprintf("*Interview report ready* for %s (interview `%s`)", name, n.InterviewID)
	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Score*\n%.0f/100", rep.OverallScore), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Decision*\n%s", orDash(rep.HiringDecision)), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Strengths*\n%s", orDash(strings.Join(rep.Strengths, ", "))), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Weaknesses*\n%s", orDash(strings.Join(rep.Weaknesses, ", "))), false, false),
	}
	section := slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, headline, false, false), fields, nil)
	return &slack.WebhookMessage{
		Text:   fmt.Sprintf("Interview report ready for %s: %.0f/100, %s", name, rep.OverallScore, orDash(rep.HiringDecision)),
		Blocks: &slack.Blocks{BlockSet: []slack.Block{section}},
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
