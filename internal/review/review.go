// Package review produces post-hand coaching: the model walks the hero's
// play street by street and the service grounds its output in the hand
// that was actually dealt.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/engine"
	"github.com/lox/holdem-arena/internal/llm"
	"github.com/lox/holdem-arena/internal/protocol"
)

const reviewInstruction = `You are a professional poker coach reviewing a completed No-Limit Texas Hold'em hand.
Respond with ONLY a JSON object in this shape, no other text:
{
  "overall": "<2-3 sentence summary of how the hand was played>",
  "rating": <1-10>,
  "streets": [
    {"street": "preflop" | "flop" | "turn" | "river", "community_cards": [], "assessment": "<what the hero did and whether it was right>"}
  ],
  "improvement_tips": ["<tip>", ...]
}`

// Service turns a completed hand into a structured review
type Service struct {
	logger *log.Logger
}

// New creates the review service
func New(logger *log.Logger) *Service {
	return &Service{logger: logger.WithPrefix("review")}
}

// Review asks the model for a hand review. keyTier names which credential
// tier supplied the client ("session", "user" or "environment") and is
// echoed back on failure so the player knows which key to fix.
func (s *Service) Review(ctx context.Context, client llm.Client, keyTier string, req protocol.ReviewRequestData) protocol.ReviewResultData {
	if client == nil {
		return protocol.ReviewResultData{
			Error:        llm.ErrNoAPIKey.Error(),
			KeyAttempted: keyTier,
		}
	}

	prompt := buildPrompt(req)
	response, err := client.Chat(ctx, []llm.Message{
		{Role: "system", Content: reviewInstruction},
		{Role: "user", Content: prompt},
	}, llm.Options{})
	if err != nil {
		s.logger.Warn("review call failed", "tier", keyTier, "err", err)
		return protocol.ReviewResultData{Error: err.Error(), KeyAttempted: keyTier}
	}

	review, err := parseReview(response, req.CommunityCards)
	if err != nil {
		s.logger.Warn("unparseable review", "err", err)
		return protocol.ReviewResultData{Error: err.Error(), KeyAttempted: keyTier}
	}

	return protocol.ReviewResultData{Review: review}
}

func buildPrompt(req protocol.ReviewRequestData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hero hole cards: %s\n", cardList(req.HeroHoleCards))
	fmt.Fprintf(&b, "Final community cards: %s\n", cardList(req.CommunityCards))
	fmt.Fprintf(&b, "Final pot: %d\nHero profit: %+d\n", req.PotSize, req.HeroProfit)

	if len(req.Winners) > 0 {
		b.WriteString("Winners:\n")
		for _, w := range req.Winners {
			fmt.Fprintf(&b, "  %s won %d", w.Name, w.Amount)
			if w.Hand != "" {
				fmt.Fprintf(&b, " with %s", w.Hand)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nAction by street:\n")
	for _, street := range []engine.Street{engine.StreetPreflop, engine.StreetFlop, engine.StreetTurn, engine.StreetRiver} {
		recs := req.StreetHistory[street]
		if len(recs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s (board: %s):\n", street, cardList(boardForStreet(street, req.CommunityCards)))
		for _, rec := range recs {
			fmt.Fprintf(&b, "  %s %s", rec.Name, rec.Action)
			if rec.Amount > 0 {
				fmt.Fprintf(&b, " %d", rec.Amount)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nReview the hero's play.")
	return b.String()
}

// parseReview extracts the review JSON and replaces whatever community
// cards the model wrote with the cards actually dealt. Models routinely
// invent boards; the dealt cards are authoritative.
func parseReview(raw string, board []deck.Card) (json.RawMessage, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in review response")
	}

	var review map[string]interface{}
	if err := json.Unmarshal([]byte(s[start:end+1]), &review); err != nil {
		return nil, fmt.Errorf("decoding review: %w", err)
	}

	if streets, ok := review["streets"].([]interface{}); ok {
		for _, entry := range streets {
			m, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := m["street"].(string)
			m["community_cards"] = deck.Notations(boardForStreet(engine.Street(name), board))
		}
	}

	return json.Marshal(review)
}

// boardForStreet slices the final board down to what was visible on the
// given street
func boardForStreet(street engine.Street, board []deck.Card) []deck.Card {
	visible := map[engine.Street]int{
		engine.StreetPreflop: 0,
		engine.StreetFlop:    3,
		engine.StreetTurn:    4,
		engine.StreetRiver:   5,
	}
	n, ok := visible[street]
	if !ok || n > len(board) {
		n = len(board)
	}
	return board[:n]
}

func cardList(cards []deck.Card) string {
	if len(cards) == 0 {
		return "(none)"
	}
	return strings.Join(deck.Notations(cards), " ")
}
