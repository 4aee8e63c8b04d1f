package config

import (
	"errors"
	"fmt"
	"time"
)

// LINE Messaging API limits.
const (
	LINEMaxMessagesPerReply   = 5
	LINEMaxTextMessageLength  = 5000
	LINEMaxPostbackDataLength = 300
	LINEMaxEventsPerWebhook   = 100
)

// BotConfig holds the reply-path limits of the bot.
type BotConfig struct {
	WebhookTimeout      time.Duration
	MaxMessagesPerReply int
	MaxEventsPerWebhook int
	MinReplyTokenLength int
	MaxMessageLength    int
	MaxPostbackDataSize int

	UserRateBurst  float64
	UserRateRefill float64 // tokens per second
	LLMRateBurst   float64
	LLMRateRefill  float64 // tokens per hour
	LLMRateDaily   int
	GlobalRateRPS  float64

	SuggestionCount int
	RelatedCount    int
}

// Validate checks the limits for obviously broken values.
func (c BotConfig) Validate() error {
	var errs []error
	if c.WebhookTimeout <= 0 {
		errs = append(errs, fmt.Errorf("webhook timeout must be positive, got %v", c.WebhookTimeout))
	}
	if c.MaxMessagesPerReply < 1 || c.MaxMessagesPerReply > LINEMaxMessagesPerReply {
		errs = append(errs, fmt.Errorf("max messages per reply must be 1-%d, got %d", LINEMaxMessagesPerReply, c.MaxMessagesPerReply))
	}
	if c.MaxEventsPerWebhook < 1 {
		errs = append(errs, errors.New("max events per webhook must be positive"))
	}
	if c.UserRateBurst <= 0 || c.UserRateRefill <= 0 {
		errs = append(errs, errors.New("user rate limit burst and refill must be positive"))
	}
	if c.LLMRateBurst <= 0 || c.LLMRateRefill <= 0 {
		errs = append(errs, errors.New("llm rate limit burst and refill must be positive"))
	}
	if c.LLMRateDaily < 0 {
		errs = append(errs, fmt.Errorf("llm daily limit cannot be negative, got %d", c.LLMRateDaily))
	}
	if c.GlobalRateRPS <= 0 {
		errs = append(errs, fmt.Errorf("global rate must be positive, got %v", c.GlobalRateRPS))
	}
	if c.SuggestionCount < 1 || c.SuggestionCount > 12 {
		errs = append(errs, fmt.Errorf("suggestion count must be 1-12, got %d", c.SuggestionCount))
	}
	if c.RelatedCount < 0 || c.RelatedCount > 12 {
		errs = append(errs, fmt.Errorf("related count must be 0-12, got %d", c.RelatedCount))
	}
	return errors.Join(errs...)
}
