package muting

import (
	"strings"

	"go.uber.org/zap"
)

// Checker reports whether a sender matches a user-configured mute entry.
// Entries are substring matches against the full sender address, so both
// "billing@make.com" and "make.com" work.
type Checker struct {
	senders []string
	logger  *zap.Logger
}

// NewChecker creates a new mute checker
func NewChecker(senders []string, logger *zap.Logger) *Checker {
	normalized := make([]string, 0, len(senders))
	for _, sender := range senders {
		sender = strings.ToLower(strings.TrimSpace(sender))
		if sender != "" {
			normalized = append(normalized, sender)
		}
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized mute checker", zap.Strings("senders", normalized))
	}

	return &Checker{
		senders: normalized,
		logger:  logger,
	}
}

// IsMuted checks if the sender matches a muted entry
func (c *Checker) IsMuted(from string) bool {
	if len(c.senders) == 0 {
		return false
	}

	lowered := strings.ToLower(from)
	for _, muted := range c.senders {
		if strings.Contains(lowered, muted) {
			if c.logger != nil {
				c.logger.Debug("Sender is muted",
					zap.String("entry", muted),
					zap.String("sender", from))
			}
			return true
		}
	}

	return false
}

// Entries returns the normalized mute list
func (c *Checker) Entries() []string {
	return c.senders
}
