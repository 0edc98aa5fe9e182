package http

import (
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// DefaultSuggestions is the canned reply pool offered to clients.
var DefaultSuggestions = []string{
	"Yes, understood 👍",
	"Got it, I'll do my best 💪",
	"Sorry about that 🙏",
	"I know what you mean 🤝",
	"Please, go ahead 🙇",
	"That's amazing! ✨",
	"I see, good to know 📚",
	"Hmm, true 🤔",
	"That's one way to look at it 🧐",
	"Great idea 💡",
	"Let's do it! 🎉",
	"Agreed 👌",
	"Sounds fun 🎧",
	"Lovely! 🌟",
	"Exactly right 🤓",
}

// SuggestionHandlers serves quick-reply suggestions.
type SuggestionHandlers struct {
	delay time.Duration
	pool  []string
	perm  func(n int) []int
	intn  func(n int) int
	log   *zerolog.Logger
}

// NewSuggestionHandlers creates handlers that answer after delay.
func NewSuggestionHandlers(delay time.Duration, logger *zerolog.Logger) *SuggestionHandlers {
	return &SuggestionHandlers{
		delay: delay,
		pool:  DefaultSuggestions,
		perm:  rand.Perm,
		intn:  rand.IntN,
		log:   logger,
	}
}

// SuggestionsResponse lists the suggested replies.
type SuggestionsResponse struct {
	Success bool     `json:"success"`
	Data    []string `json:"data"`
	Count   int      `json:"count"`
}

// pick returns three to five distinct suggestions in random order.
func (h *SuggestionHandlers) pick() []string {
	count := min(3+h.intn(3), len(h.pool))
	out := make([]string, 0, count)
	for _, i := range h.perm(len(h.pool))[:count] {
		out = append(out, h.pool[i])
	}
	return out
}

// ReplySuggestions returns random canned replies.
// GET /api/replySuggestion
func (h *SuggestionHandlers) ReplySuggestions(c *gin.Context) {
	suggestions := h.pick()

	if h.delay > 0 {
		timer := time.NewTimer(h.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-c.Request.Context().Done():
			return
		}
	}

	h.log.Debug().Int("count", len(suggestions)).Msg("reply suggestions generated")
	c.JSON(http.StatusOK, SuggestionsResponse{
		Success: true,
		Data:    suggestions,
		Count:   len(suggestions),
	})
}
