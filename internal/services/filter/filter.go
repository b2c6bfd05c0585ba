package filter

import (
	"strings"

	"go.uber.org/zap"

	"mailwatch/internal/config"
)

// Engine decides whether a decoded message matches the configured rules.
// All comparisons are case-insensitive substring checks, first match
// wins. The canonical order is keyword-first: subject keywords, then
// body keywords, then the sender allow-list. Keyword rules intentionally
// outrank the sender list so an urgent keyword is never missed just
// because the sender is unknown.
type Engine struct {
	config config.FilterConfig
	logger *zap.Logger
}

func New(filterConfig config.FilterConfig, logger *zap.Logger) *Engine {
	return &Engine{
		config: filterConfig,
		logger: logger,
	}
}

// Matches reports whether the message passes any configured rule.
// Every decision is logged for operability.
func (e *Engine) Matches(sender, subject, body string) bool {
	subjectLower := strings.ToLower(subject)
	for _, keyword := range e.config.SubjectKeywords {
		if keyword != "" && strings.Contains(subjectLower, strings.ToLower(keyword)) {
			e.logger.Info("Email accepted: subject keyword matched",
				zap.String("keyword", keyword),
				zap.String("subject", subject))
			return true
		}
	}

	bodyLower := strings.ToLower(body)
	for _, keyword := range e.config.Keywords {
		if keyword != "" && strings.Contains(bodyLower, strings.ToLower(keyword)) {
			e.logger.Info("Email accepted: body keyword matched",
				zap.String("keyword", keyword),
				zap.String("sender", sender))
			return true
		}
	}

	senderLower := strings.ToLower(sender)
	for _, allowed := range e.config.Senders {
		if allowed != "" && strings.Contains(senderLower, strings.ToLower(allowed)) {
			e.logger.Info("Email accepted: allowed sender matched",
				zap.String("allowed_sender", allowed),
				zap.String("sender", sender))
			return true
		}
	}

	e.logger.Info("Email rejected: no filter matched",
		zap.String("sender", sender),
		zap.String("subject", subject))
	return false
}
