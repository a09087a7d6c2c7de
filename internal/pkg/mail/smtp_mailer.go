package mail

import (
	"fmt"
	"log"
	"net/smtp"
	"sort"

	"github.com/FinnKramer/PawMarket/internal/pkg/env"
)

// Template aliases understood by SendTemplate. Rendering stays deliberately
// plain; real template content lives with the mail provider.
const (
	TemplateListingApproved      = "listing-approved"
	TemplateListingApprovedAdmin = "listing-approved-admin"
	TemplateAccountActivation    = "account-activation"
)

var templateSubjects = map[string]string{
	TemplateListingApproved:      "Your listing has been approved",
	TemplateListingApprovedAdmin: "A listing has been approved",
	TemplateAccountActivation:    "Activate your PawMarket account",
}

// SendMail sends an email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendTemplate sends a templated email. Unknown aliases are an error so a
// typo never silently sends an empty mail.
func SendTemplate(recipient, templateAlias string, data map[string]interface{}) error {
	subject, ok := templateSubjects[templateAlias]
	if !ok {
		return fmt.Errorf("unknown mail template %q", templateAlias)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	body := fmt.Sprintf("<h2>%s</h2><table>", subject)
	for _, k := range keys {
		body += fmt.Sprintf("<tr><td>%s</td><td>%v</td></tr>", k, data[k])
	}
	body += "</table>"

	return SendMail(recipient, subject, body)
}
