package bootstrap

import (
	"testing"

	"aegis/config"
	"aegis/core"
	"aegis/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	logger, sugar, err := InitLogger()
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.NotNil(t, sugar)
	logger.Sync()
}

func TestNotificationConfigs_Disabled(t *testing.T) {
	cfg := &config.Config{}
	assert.Empty(t, notificationConfigs(cfg))
}

func TestNotificationConfigs_Email(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notifications.Email.Enabled = true
	cfg.Notifications.Email.SMTPHost = "mail.example.com"
	cfg.Notifications.Email.SMTPPort = 587
	cfg.Notifications.Email.FromAddress = "aegis@example.com"
	cfg.Notifications.Email.ToAddresses = []string{"soc@example.com"}
	cfg.Notifications.Email.MinSeverity = "high"

	configs := notificationConfigs(cfg)
	require.Len(t, configs, 1)
	assert.Equal(t, notify.NotificationEmail, configs[0].Type)
	assert.Equal(t, "mail.example.com", configs[0].SMTPHost)
	assert.Equal(t, core.SeverityHigh, configs[0].MinSeverity)
}

func TestNotificationConfigs_Webhook(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notifications.Webhook.Enabled = true
	cfg.Notifications.Webhook.URL = "https://hooks.example.com/aegis"
	cfg.Notifications.Webhook.Headers = map[string]string{"Authorization": "Bearer token"}

	configs := notificationConfigs(cfg)
	require.Len(t, configs, 1)
	assert.Equal(t, notify.NotificationWebhook, configs[0].Type)
	assert.Equal(t, "https://hooks.example.com/aegis", configs[0].WebhookURL)
}
