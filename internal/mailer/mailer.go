// Package mailer delivers proposals by email through Amazon SES.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const charset = "UTF-8"

var ErrNoRecipient = errors.New("no recipient address")

// Message is a multipart email with a plain text and an HTML body.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// SESService is the subset of the SES client used here.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SES sends messages from a fixed address.
type SES struct {
	client SESService
	from   string
}

// NewSES loads the default AWS credential chain for region.
func NewSES(ctx context.Context, region, from string) (*SES, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SES{client: ses.NewFromConfig(cfg), from: from}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client SESService, from string) *SES {
	return &SES{client: client, from: from}
}

// Send delivers m and returns the SES message id.
func (s *SES) Send(ctx context.Context, m Message) (string, error) {
	if m.To == "" {
		return "", ErrNoRecipient
	}

	body := &types.Body{Text: &types.Content{Data: aws.String(m.Text), Charset: aws.String(charset)}}
	if m.HTML != "" {
		body.Html = &types.Content{Data: aws.String(m.HTML), Charset: aws.String(charset)}
	}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{m.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(m.Subject), Charset: aws.String(charset)},
			Body:    body,
		},
		Source: aws.String(s.from),
	})
	if err != nil {
		return "", fmt.Errorf("ses send to %s: %w", m.To, err)
	}
	return aws.ToString(out.MessageId), nil
}
