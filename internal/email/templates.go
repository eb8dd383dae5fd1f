package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// ComplaintDetails is the subset of a complaint shown in notification emails
type ComplaintDetails struct {
	Title       string
	Description string
	Urgency     string
	Location    string
	Status      string
}

const layoutHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #2d7b9a;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .button {
            display: inline-block;
            background-color: #2d7b9a;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        table { width: 100%; border-collapse: collapse; margin: 15px 0; }
        td { padding: 8px; }
        td.label { font-weight: bold; width: 30%; }
        .resolved { color: green; font-weight: bold; }
        .rejected { color: red; font-weight: bold; }
        .footer {
            margin-top: 30px;
            font-size: 14px;
            color: gray;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Heading}}</h1>
    </div>
    <div class="content">
        <p>Dear <strong>{{.Name}}</strong>,</p>
        {{template "content" .}}
    </div>
    <div class="footer">
        <p>Regards,<br/><strong>{{.FromName}}</strong><br/>Municipal Corporation</p>
    </div>
</body>
</html>
`

const verificationHTML = `{{define "content"}}
        <p>Thank you for registering with the Municipal Corporation complaint portal. Please click the button below to verify your email address and activate your account.</p>

        <a href="{{.Link}}" class="button" style="color: white !important;">Verify Email Address</a>

        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all; color: #2d7b9a;">{{.Link}}</p>

        <p>This link will expire in 1 hour. If you didn't create an account, you can safely ignore this email.</p>
{{end}}`

const submittedHTML = `{{define "content"}}
        <p>Thank you for submitting your complaint to the <strong>Municipal Corporation</strong>. Below are the details of your submission:</p>
        <table>
            <tr><td class="label">Title:</td><td>{{.Complaint.Title}}</td></tr>
            <tr><td class="label">Description:</td><td>{{.Complaint.Description}}</td></tr>
            <tr><td class="label">Urgency:</td><td>{{.Complaint.Urgency}}</td></tr>
            <tr><td class="label">Location:</td><td>{{.Complaint.Location}}</td></tr>
        </table>
        <p>Our team will review your complaint and take the necessary action as per the urgency level. You will be notified once the status is updated.</p>
{{end}}`

const updatedHTML = `{{define "content"}}
        <p>Your complaint has been updated. The current details are:</p>
        <table>
            <tr><td class="label">Title:</td><td>{{.Complaint.Title}}</td></tr>
            <tr><td class="label">Description:</td><td>{{.Complaint.Description}}</td></tr>
            <tr><td class="label">Urgency:</td><td>{{.Complaint.Urgency}}</td></tr>
            <tr><td class="label">Location:</td><td>{{.Complaint.Location}}</td></tr>
            <tr><td class="label">Status:</td><td>{{.Complaint.Status}}</td></tr>
        </table>
{{end}}`

const resolvedHTML = `{{define "content"}}
        <p>This is to inform you that your complaint submitted to the <strong>Municipal Corporation</strong> has been successfully resolved. The details are as follows:</p>
        <table>
            <tr><td class="label">Title:</td><td>{{.Complaint.Title}}</td></tr>
            <tr><td class="label">Status:</td><td class="resolved">Resolved</td></tr>
        </table>
        <p>We appreciate your effort in reporting the issue. If you have any further concerns, please feel free to raise a new complaint.</p>
{{end}}`

const rejectedHTML = `{{define "content"}}
        <p>We appreciate your effort in reporting issues through the <strong>Municipal Corporation</strong> portal.</p>
        <p>After review, the following complaint has been <strong>rejected</strong> due to insufficient or invalid information:</p>
        <table>
            <tr><td class="label">Title:</td><td>{{.Complaint.Title}}</td></tr>
            <tr><td class="label">Status:</td><td class="rejected">Rejected</td></tr>
        </table>
        <p>If you believe this was a mistake or if you can provide additional details, we encourage you to resubmit the complaint.</p>
{{end}}`

var (
	layout = template.Must(template.New("layout").Parse(layoutHTML))

	verificationTmpl = page(verificationHTML)
	submittedTmpl    = page(submittedHTML)
	updatedTmpl      = page(updatedHTML)
	resolvedTmpl     = page(resolvedHTML)
	rejectedTmpl     = page(rejectedHTML)
)

func page(content string) *template.Template {
	return template.Must(template.Must(layout.Clone()).Parse(content))
}

type pageData struct {
	Heading   string
	Name      string
	FromName  string
	Link      string
	Complaint ComplaintDetails
}

func render(t *template.Template, data pageData) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

func (s *Service) subject(topic string) string {
	if s.fromName == "" {
		return topic
	}
	return topic + " - " + s.fromName
}

func (s *Service) VerificationMessage(to, name, link string) (Message, error) {
	html, err := render(verificationTmpl, pageData{
		Heading:  "Verify your email address",
		Name:     name,
		FromName: s.fromName,
		Link:     link,
	})
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      to,
		Subject: s.subject("Verify your email"),
		Text:    fmt.Sprintf("Hi %s, please verify your email: %s\nThis link will expire in 1 hour.", name, link),
		HTML:    html,
	}, nil
}

func (s *Service) ComplaintSubmittedMessage(to, name string, c ComplaintDetails) (Message, error) {
	html, err := render(submittedTmpl, pageData{
		Heading:   "Complaint Submission Confirmation",
		Name:      name,
		FromName:  s.fromName,
		Complaint: c,
	})
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      to,
		Subject: s.subject("Complaint Submitted"),
		Text:    fmt.Sprintf("Hi %s, your complaint %q has been submitted.", name, c.Title),
		HTML:    html,
	}, nil
}

func (s *Service) ComplaintUpdatedMessage(to, name string, c ComplaintDetails) (Message, error) {
	html, err := render(updatedTmpl, pageData{
		Heading:   "Complaint Updated",
		Name:      name,
		FromName:  s.fromName,
		Complaint: c,
	})
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      to,
		Subject: s.subject("Complaint Updated"),
		Text:    fmt.Sprintf("Hi %s, your complaint %q has been updated.", name, c.Title),
		HTML:    html,
	}, nil
}

// ComplaintStatusMessage renders the resolution or rejection notice for c.Status
func (s *Service) ComplaintStatusMessage(to, name string, c ComplaintDetails) (Message, error) {
	var (
		tmpl    *template.Template
		heading string
		verb    string
	)
	switch strings.ToLower(c.Status) {
	case "resolved":
		tmpl, heading, verb = resolvedTmpl, "Complaint Resolution Notification", "has been resolved"
	case "rejected":
		tmpl, heading, verb = rejectedTmpl, "Complaint Review Outcome", "was rejected"
	default:
		return Message{}, fmt.Errorf("no status template for %q", c.Status)
	}

	html, err := render(tmpl, pageData{
		Heading:   heading,
		Name:      name,
		FromName:  s.fromName,
		Complaint: c,
	})
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      to,
		Subject: s.subject("Complaint " + c.Status),
		Text:    fmt.Sprintf("Hi %s, your complaint %q %s.", name, c.Title, verb),
		HTML:    html,
	}, nil
}
