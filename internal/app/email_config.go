package app

import "github.com/easylesson/easylesson-server/pkg/mail"

// SendGridSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SendGridSettings() mail.SendGridSettings {
	return mail.SendGridSettings{
		Enabled:  c.SendGrid.Enabled,
		APIKey:   c.SendGrid.APIKey,
		From:     c.SendGrid.From,
		FromName: c.SendGrid.FromName,
		Timeout:  c.SendGrid.Timeout,
	}
}
