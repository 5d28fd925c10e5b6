package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/bookbonus/bonus-backend/config"
	"github.com/bookbonus/bonus-backend/logger"
	"github.com/bookbonus/bonus-backend/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/resend/resend-go/v2"
)

type EmailMetrics struct {
	sendLatency prometheus.Histogram
	errorCount  prometheus.Counter
	sentCount   prometheus.Counter
}

// EmailService sends bonus delivery emails through Resend.
type EmailService struct {
	config      *config.EmailConfig
	frontendURL string
	client      *resend.Client
	metrics     *EmailMetrics
}

func NewEmailService(cfg *config.EmailConfig, frontendURL string) *EmailService {
	return NewEmailServiceWithRegistry(cfg, frontendURL, prometheus.DefaultRegisterer)
}

func NewEmailServiceWithRegistry(cfg *config.EmailConfig, frontendURL string, reg prometheus.Registerer) *EmailService {
	logger.GetLogger().Infow("Initializing email service", "from", cfg.FromAddress)
	var client *resend.Client
	if cfg.ResendAPIKey != "" {
		client = resend.NewClient(cfg.ResendAPIKey)
	}
	metrics := &EmailMetrics{
		sendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookbonus_email_send_duration_seconds",
			Help:    "Time taken to send emails",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		}),
		errorCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookbonus_email_errors_total",
			Help: "Total number of email sending errors",
		}),
		sentCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookbonus_emails_sent_total",
			Help: "Total number of emails sent",
		}),
	}

	reg.MustRegister(metrics.sendLatency)
	reg.MustRegister(metrics.errorCount)
	reg.MustRegister(metrics.sentCount)

	return &EmailService{
		config:      cfg,
		frontendURL: frontendURL,
		client:      client,
		metrics:     metrics,
	}
}

// deliveryLink is one asset entry rendered into the delivery email.
type deliveryLink struct {
	Name string
	URL  string
}

// SendDeliveryEmail sends the bonus content email for an approved claim and
// returns the provider's tracking ID. Without an API key (development) the
// email is logged instead of sent and an empty tracking ID is returned.
func (s *EmailService) SendDeliveryEmail(ctx context.Context, claim *types.BonusClaim, entitlements []*types.Entitlement, assets map[string]types.BonusAsset) (string, error) {
	startTime := time.Now()
	log := logger.GetLogger()
	defer func() {
		s.metrics.sendLatency.Observe(time.Since(startTime).Seconds())
	}()

	links := make([]deliveryLink, 0, len(entitlements))
	var expiresAt time.Time
	for _, e := range entitlements {
		asset, ok := assets[e.AssetSlug]
		if !ok {
			continue
		}
		links = append(links, deliveryLink{
			Name: asset.Name,
			URL:  fmt.Sprintf("%s/bonus/%s", s.frontendURL, e.AccessToken),
		})
		expiresAt = e.ExpiresAt
	}
	if len(links) == 0 {
		s.metrics.errorCount.Inc()
		return "", fmt.Errorf("no deliverable entitlements for claim %s", claim.ID)
	}

	tmpl, err := template.New("delivery").Parse(deliveryEmailTemplate)
	if err != nil {
		s.metrics.errorCount.Inc()
		log.Errorw("Failed to parse email template", "error", err)
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var htmlContent bytes.Buffer
	err = tmpl.Execute(&htmlContent, map[string]interface{}{
		"Links":     links,
		"ExpiresAt": expiresAt.Format("January 2, 2006 at 15:04 MST"),
	})
	if err != nil {
		s.metrics.errorCount.Inc()
		log.Errorw("Failed to execute email template", "error", err)
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	if s.client == nil {
		log.Infow("Email client not configured; logging delivery email instead",
			"to", logger.MaskEmail(claim.DeliveryEmail),
			"links", len(links))
		return "", nil
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress),
		To:      []string{claim.DeliveryEmail},
		Subject: "Your bonus content is ready",
		Html:    htmlContent.String(),
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		s.metrics.errorCount.Inc()
		log.Errorw("Failed to send email",
			"error", err,
			"to", logger.MaskEmail(claim.DeliveryEmail))
		return "", fmt.Errorf("email send failed: %w", err)
	}

	s.metrics.sentCount.Inc()
	log.Infow("Delivery email sent",
		"to", logger.MaskEmail(claim.DeliveryEmail),
		"trackingId", sent.Id)

	return sent.Id, nil
}

// Template constants
const deliveryEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Your Bonus Content</title>
    <style>
        body {
            font-family: 'sans-serif';
            background-color: #f7f7f7;
            color: #333333;
            margin: 0;
            padding: 20px;
            text-align: center;
        }
        .container {
            max-width: 600px;
            margin: 20px auto;
            background-color: #ffffff;
            padding: 30px;
            border-radius: 12px;
            box-shadow: 0 4px 8px rgba(0, 0, 0, 0.05);
        }
        h1 {
            color: #1B6CA8;
            font-size: 28px;
            margin-bottom: 20px;
        }
        p {
            font-size: 16px;
            line-height: 1.6;
            margin-bottom: 25px;
        }
        .button {
            display: inline-block;
            margin: 8px 0;
            padding: 12px 24px;
            font-size: 16px;
            font-weight: bold;
            text-decoration: none;
            background-color: #1B6CA8;
            color: #ffffff;
            border-radius: 8px;
        }
        .expiry {
            margin-top: 20px;
            font-size: 14px;
            color: #777777;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>Thanks for your purchase!</h1>
        <p>Your receipt has been verified. Your bonus content is ready to download:</p>
        {{range .Links}}
        <p>
            <a href="{{.URL}}" class="button">{{.Name}}</a>
        </p>
        {{end}}
        <p class="expiry">
            These links expire on {{.ExpiresAt}}.
        </p>
    </div>
</body>
</html>`
