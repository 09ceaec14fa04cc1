package ai

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/lox/holdem-arena/internal/engine"
	"github.com/lox/holdem-arena/internal/llm"
)

// Decision is the result of one decision point, including the raw exchange
// for debug taps.
type Decision struct {
	Action    engine.Action
	Reasoning string
	Prompt    string
	Response  string
	Fallback  bool // rule-based strategy was used instead of the model
}

// Advice is a suggested move plus the math behind it, shown to humans with
// the copilot enabled.
type Advice struct {
	Action    string  `json:"action"`
	Amount    int     `json:"amount"`
	Reasoning string  `json:"reasoning"`
	Equity    float64 `json:"equity"`
	PotOdds   float64 `json:"pot_odds"`
	EVCall    float64 `json:"ev_call"`
}

// Kernel turns action requests into legal actions. It consults the model
// when a client is configured and degrades to rule-based play when the
// model is unreachable or returns garbage.
type Kernel struct {
	client     llm.Client // nil means rule-based only
	difficulty Difficulty
	iterations int
	rng        *rand.Rand
	logger     *log.Logger
}

// NewKernel creates a kernel. client may be nil.
func NewKernel(client llm.Client, difficulty Difficulty, rng *rand.Rand, logger *log.Logger) *Kernel {
	if difficulty == "" {
		difficulty = DifficultyMedium
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Kernel{
		client:     client,
		difficulty: difficulty,
		iterations: 0, // 0 selects the evaluator default
		rng:        rng,
		logger:     logger.WithPrefix("ai"),
	}
}

// modelResponse is the JSON shape we ask the model for
type modelResponse struct {
	Action    string `json:"action"`
	Amount    int    `json:"amount"`
	Reasoning string `json:"reasoning"`
}

// Decide produces a legal action for the request. history is the hand's
// action log so far.
func (k *Kernel) Decide(ctx context.Context, persona Persona, req engine.ActionRequest, history []engine.ActionRecord) Decision {
	analysis := k.analyze(req)

	in := PromptInput{
		Persona:  persona,
		Request:  req,
		History:  history,
		Analysis: analysis,
	}
	if persona.Harrington {
		h := k.harrington(req)
		in.Harrington = &h
	}
	system, user := BuildPrompt(in)

	if k.client == nil {
		return k.ruleFallback(req.Legal, system+"\n\n"+user, "", "no model configured")
	}

	response, err := k.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, llm.Options{})
	if err != nil {
		k.logger.Warn("model call failed, using rule strategy", "persona", persona.Code, "err", err)
		return k.ruleFallback(req.Legal, system+"\n\n"+user, "", err.Error())
	}

	parsed, err := parseModelResponse(response)
	if err != nil {
		k.logger.Warn("unparseable model response, using rule strategy", "persona", persona.Code, "err", err)
		return k.ruleFallback(req.Legal, system+"\n\n"+user, response, err.Error())
	}

	return Decision{
		Action:    Validate(parsed.Action, parsed.Amount, req.Legal),
		Reasoning: parsed.Reasoning,
		Prompt:    system + "\n\n" + user,
		Response:  response,
	}
}

// Advise computes a copilot suggestion for a human seat. With no model it
// falls back to a pure pot-odds heuristic.
func (k *Kernel) Advise(ctx context.Context, req engine.ActionRequest, history []engine.ActionRecord) Advice {
	analysis := k.analyze(req)
	advice := Advice{
		Equity:  analysis.Equity,
		PotOdds: analysis.PotOdds,
		EVCall:  analysis.EVCall,
	}

	if k.client != nil {
		balanced, _ := PersonaByCode("balanced")
		system, user := BuildPrompt(PromptInput{
			Persona:  balanced,
			Request:  req,
			History:  history,
			Analysis: analysis,
		})
		if response, err := k.client.Chat(ctx, []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		}, llm.Options{}); err == nil {
			if parsed, perr := parseModelResponse(response); perr == nil {
				action := Validate(parsed.Action, parsed.Amount, req.Legal)
				advice.Action = string(action.Type)
				advice.Amount = action.Amount
				advice.Reasoning = parsed.Reasoning
				return advice
			}
		}
		k.logger.Debug("copilot model unavailable, using math heuristic")
	}

	// Math-only heuristic: take free cards, call when the price is right.
	legal := req.Legal
	switch {
	case legal.CanCheck():
		if analysis.Equity > 0.7 && legal.CanRaise() {
			advice.Action = string(engine.ActionRaise)
			advice.Amount = legal.MinRaise
			advice.Reasoning = "Strong equity; bet for value."
		} else {
			advice.Action = string(engine.ActionCall)
			advice.Reasoning = "Free card; check."
		}
	case analysis.Equity >= analysis.PotOdds:
		advice.Action = string(engine.ActionCall)
		advice.Amount = legal.CallAmount
		advice.Reasoning = "Equity beats the pot odds; calling is profitable."
	default:
		advice.Action = string(engine.ActionFold)
		advice.Reasoning = "Equity is below the pot odds; fold."
	}
	return advice
}

func (k *Kernel) analyze(req engine.ActionRequest) Analysis {
	return Analyze(req.Hole, req.State.Board, req.State.Pot, req.Legal.CallAmount, k.iterations, k.rng)
}

func (k *Kernel) harrington(req engine.ActionRequest) HarringtonContext {
	var myStack int
	var oppStacks []int
	for _, s := range req.State.Seats {
		if s.ID == req.SeatID {
			myStack = s.Stack
			continue
		}
		if !s.Folded {
			oppStacks = append(oppStacks, s.Stack)
		}
	}
	return HarringtonAnalysis(req.Hole, req.State.Board, myStack, oppStacks, req.State.Pot, req.State.BigBlind, k.rng)
}

func (k *Kernel) ruleFallback(legal engine.LegalActions, prompt, response, reason string) Decision {
	return Decision{
		Action:    RuleDecision(k.difficulty, legal, k.rng),
		Reasoning: "rule-based fallback: " + reason,
		Prompt:    prompt,
		Response:  response,
		Fallback:  true,
	}
}

var (
	errNoJSON   = errors.New("no JSON object in response")
	errNoAction = errors.New("response is missing an action")
)

// parseModelResponse extracts the decision JSON, tolerating markdown fences
// and surrounding prose.
func parseModelResponse(raw string) (modelResponse, error) {
	var out modelResponse

	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimSpace(s)
	}

	// Narrow to the outermost object in case the model added prose.
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return out, errNoJSON
	}

	if err := json.Unmarshal([]byte(s[start:end+1]), &out); err != nil {
		return out, err
	}
	if out.Action == "" {
		return out, errNoAction
	}
	return out, nil
}
