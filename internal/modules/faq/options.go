package faq

// HandlerOption is a functional option for configuring Handler.
type HandlerOption func(*Handler)

// WithSuggestionCount sets how many questions a miss suggests.
func WithSuggestionCount(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.suggestionCount = n
		}
	}
}

// WithRelatedCount sets how many follow-ups a hit offers (0 = none).
func WithRelatedCount(n int) HandlerOption {
	return func(h *Handler) {
		if n >= 0 {
			h.relatedCount = n
		}
	}
}

// WithOutlineURL sets the web outline page linked from /schoolinfo.
func WithOutlineURL(url string) HandlerOption {
	return func(h *Handler) {
		h.outlineURL = url
	}
}

// WithOnlineEnabled lists the online commands in the welcome text.
func WithOnlineEnabled(enabled bool) HandlerOption {
	return func(h *Handler) {
		h.onlineEnabled = enabled
	}
}
