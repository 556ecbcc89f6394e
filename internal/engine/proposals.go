package engine

import (
	"context"
	"fmt"

	"github.com/Simplici0/studio-quotes/internal/mailer"
	"github.com/Simplici0/studio-quotes/internal/metrics"
	"github.com/Simplici0/studio-quotes/internal/proposal"
	"github.com/Simplici0/studio-quotes/internal/render"
	"github.com/Simplici0/studio-quotes/internal/store"
)

// ProposalOptions controls the free-text part of a proposal.
type ProposalOptions struct {
	SpecialNotes string
	// Suggest appends generated advice to SpecialNotes when a suggester is
	// configured.
	Suggest bool
}

// Proposal assembles the client document for the current version.
func (s *Service) Proposal(ctx context.Context, id string, opts ProposalOptions) (proposal.Document, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return proposal.Document{}, err
	}
	return s.proposalFor(ctx, rec, opts)
}

func (s *Service) proposalFor(ctx context.Context, rec store.Record, opts ProposalOptions) (proposal.Document, error) {
	b, err := s.pricingFor(ctx, rec)
	if err != nil {
		return proposal.Document{}, err
	}

	notes := opts.SpecialNotes
	if opts.Suggest {
		if text := s.suggestion(ctx, rec); text != "" {
			if notes != "" {
				notes += "\n\n"
			}
			notes += text
		}
	}
	return s.assembler.Assemble(rec.Answers, b, notes), nil
}

// suggestion never fails the proposal; errors only reach the log.
func (s *Service) suggestion(ctx context.Context, rec store.Record) string {
	if s.suggester == nil {
		return ""
	}
	text, err := s.suggester.Suggest(ctx, rec.Answers)
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("suggest").Inc()
		s.logger.WithError(err).Warn("suggestion skipped", map[string]interface{}{"assessmentId": rec.ID})
		return ""
	}
	return text
}

// ProposalText renders the proposal as plain text.
func (s *Service) ProposalText(ctx context.Context, id string, opts ProposalOptions) (string, error) {
	doc, err := s.Proposal(ctx, id, opts)
	if err != nil {
		return "", err
	}
	return render.ProposalText(doc), nil
}

// ProposalHTML renders the printable HTML proposal.
func (s *Service) ProposalHTML(ctx context.Context, id string, opts ProposalOptions) (string, error) {
	doc, err := s.Proposal(ctx, id, opts)
	if err != nil {
		return "", err
	}
	html, err := render.ProposalPrintHTML(doc)
	if err != nil {
		return "", fmt.Errorf("render proposal %s: %w", id, err)
	}
	return html, nil
}

// ProposalPDF prints the HTML rendering. It fails with ErrUnavailable when
// no converter is configured.
func (s *Service) ProposalPDF(ctx context.Context, id string, opts ProposalOptions) ([]byte, error) {
	if s.pdf == nil {
		return nil, fmt.Errorf("pdf export: %w", ErrUnavailable)
	}
	html, err := s.ProposalHTML(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	pdf, err := s.pdf.PDF(ctx, html)
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("pdf").Inc()
		return nil, fmt.Errorf("pdf export of %s: %w", id, err)
	}
	return pdf, nil
}

// EmailProposal sends the text and HTML renderings to the client email
// recorded on the assessment and returns the provider's message id.
func (s *Service) EmailProposal(ctx context.Context, id string, opts ProposalOptions) (string, error) {
	if s.mailer == nil {
		return "", fmt.Errorf("email: %w", ErrUnavailable)
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if rec.Answers.ClientEmail == "" {
		return "", fmt.Errorf("email proposal %s: %w", id, ErrNoRecipient)
	}

	doc, err := s.proposalFor(ctx, rec, opts)
	if err != nil {
		return "", err
	}
	html, err := render.ProposalPrintHTML(doc)
	if err != nil {
		return "", fmt.Errorf("render proposal %s: %w", id, err)
	}

	msgID, err := s.mailer.Send(ctx, mailer.Message{
		To:      rec.Answers.ClientEmail,
		Subject: doc.Title,
		Text:    render.ProposalText(doc),
		HTML:    html,
	})
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("mailer").Inc()
		return "", fmt.Errorf("email proposal %s: %w", id, err)
	}

	s.logger.Info("proposal emailed", map[string]interface{}{
		"assessmentId": id,
		"messageId":    msgID,
	})
	return msgID, nil
}
