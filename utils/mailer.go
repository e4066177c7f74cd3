package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"gopkg.in/gomail.v2"
	"renewly/config"
)

type EmailData struct {
	Subject   string
	To        []string
	CC        []string
	BCC       []string
	Template  string
	Data      interface{}
	Year      int
	FromName  string
	FromEmail string
}

// Embedded email templates
var emailTemplates = map[string]string{
	"invitation": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .button { display: inline-block; padding: 12px 24px; background: #3b82f6; color: #fff; border-radius: 6px; text-decoration: none; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>You've been invited to {{.TeamName}}</h2>
    </div>

    <div class="content">
        <p>Hello,</p>
        <p>{{.InviterName}} invited you to join the team <strong>{{.TeamName}}</strong> on Renewly as a {{.Role}}.</p>

        <p style="text-align: center; margin: 30px 0;">
            <a class="button" href="{{.AcceptLink}}">Accept invitation</a>
        </p>

        <p>This invitation expires on {{.ExpiresAt}}. If the button doesn't work, paste this link into your browser:</p>
        <p>{{.AcceptLink}}</p>
    </div>

    <div class="footer">
        <p>If you weren't expecting this invitation, you can safely ignore this email.</p>
        <p>© {{.Year}} Renewly. All rights reserved.</p>
    </div>
</body>
</html>`,

	"ownership_transfer": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>You are now the owner of {{.TeamName}}</h2>
    </div>

    <div class="content">
        <p>Hello,</p>
        <p>{{.PreviousOwner}} transferred ownership of <strong>{{.TeamName}}</strong> to you. You now hold every team capability, including team deletion and ownership transfer.</p>
    </div>

    <div class="footer">
        <p>© {{.Year}} Renewly. All rights reserved.</p>
    </div>
</body>
</html>`,
}

func SendEmail(data EmailData) error {
	// Set default from email if not provided
	if data.FromEmail == "" {
		data.FromEmail = config.AppConfig.FromEmail
	}
	if data.FromName == "" {
		data.FromName = config.AppConfig.FromName
	}
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}

	// Get template from embedded templates
	tmplContent, ok := emailTemplates[data.Template]
	if !ok {
		return fmt.Errorf("template '%s' not found", data.Template)
	}

	tmpl, err := template.New("email").Parse(tmplContent)
	if err != nil {
		return fmt.Errorf("error parsing template: %v", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data.Data); err != nil {
		return fmt.Errorf("error executing template: %v", err)
	}

	smtpPort, err := strconv.Atoi(config.AppConfig.SMTPPort)
	if err != nil {
		return fmt.Errorf("invalid SMTP_PORT: %v", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", data.FromName, data.FromEmail))
	m.SetHeader("To", data.To...)
	if len(data.CC) > 0 {
		m.SetHeader("Cc", data.CC...)
	}
	if len(data.BCC) > 0 {
		m.SetHeader("Bcc", data.BCC...)
	}
	m.SetHeader("Subject", data.Subject)
	m.SetBody("text/html", body.String())

	d := gomail.NewDialer(
		config.AppConfig.SMTPHost,
		smtpPort,
		config.AppConfig.SMTPUsername,
		config.AppConfig.SMTPPassword,
	)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}

	return nil
}

func SendInvitationEmail(email, teamName, inviterName, role, token string, expiresAt time.Time) error {
	acceptLink := fmt.Sprintf("%s/invitations/accept?token=%s", config.AppConfig.AppBaseURL, token)
	data := EmailData{
		Subject:  fmt.Sprintf("You've been invited to join %s", teamName),
		To:       []string{email},
		Template: "invitation",
		Year:     time.Now().Year(),
		Data: struct {
			Subject     string
			TeamName    string
			InviterName string
			Role        string
			AcceptLink  string
			ExpiresAt   string
			Year        int
		}{
			Subject:     fmt.Sprintf("You've been invited to join %s", teamName),
			TeamName:    teamName,
			InviterName: inviterName,
			Role:        role,
			AcceptLink:  acceptLink,
			ExpiresAt:   expiresAt.Format("January 2, 2006"),
			Year:        time.Now().Year(),
		},
	}

	return SendEmail(data)
}

func SendOwnershipTransferEmail(email, teamName, previousOwner string) error {
	data := EmailData{
		Subject:  fmt.Sprintf("You are now the owner of %s", teamName),
		To:       []string{email},
		Template: "ownership_transfer",
		Year:     time.Now().Year(),
		Data: struct {
			Subject       string
			TeamName      string
			PreviousOwner string
			Year          int
		}{
			Subject:       fmt.Sprintf("You are now the owner of %s", teamName),
			TeamName:      teamName,
			PreviousOwner: previousOwner,
			Year:          time.Now().Year(),
		},
	}

	return SendEmail(data)
}
