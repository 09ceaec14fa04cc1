package engine

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/charmbracelet/log"
	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/evaluator"
)

// Game drives consecutive hands of no-limit hold'em for a fixed table of
// seats. Run blocks its caller; seats block the game in DeclareAction.
type Game struct {
	cfg    Config
	seats  []Seat
	rng    *rand.Rand
	logger *log.Logger
	button int
}

type player struct {
	seat      Seat
	stack     int
	hole      []deck.Card
	folded    bool
	allin     bool
	out       bool // busted in an earlier hand
	streetBet int
}

// New creates a game with the given table config
func New(cfg Config, rng *rand.Rand, logger *log.Logger) *Game {
	if cfg.SmallBlind <= 0 {
		cfg.SmallBlind = DefaultConfig().SmallBlind
	}
	if cfg.BigBlind <= 0 {
		cfg.BigBlind = cfg.SmallBlind * 2
	}
	if cfg.InitialStack <= 0 {
		cfg.InitialStack = DefaultConfig().InitialStack
	}
	return &Game{
		cfg:    cfg,
		rng:    rng,
		logger: logger.WithPrefix("engine"),
	}
}

// AddSeat registers a seat. Must be called before Run.
func (g *Game) AddSeat(s Seat) {
	g.seats = append(g.seats, s)
}

// Run plays hands until the context is cancelled, MaxRounds is reached, or
// fewer than two seats have chips. It returns nil on a normal finish.
func (g *Game) Run(ctx context.Context) error {
	if len(g.seats) < 2 {
		return fmt.Errorf("need at least 2 seats, have %d", len(g.seats))
	}

	players := make([]*player, len(g.seats))
	for i, s := range g.seats {
		players[i] = &player{seat: s, stack: g.cfg.InitialStack}
	}

	states := seatStates(players)
	for _, p := range players {
		p.seat.GameStart(g.cfg, states)
	}

	for round := 1; g.cfg.MaxRounds <= 0 || round <= g.cfg.MaxRounds; round++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if g.countWithChips(players) < 2 {
			g.logger.Info("game over, one player remains", "rounds", round-1)
			return nil
		}

		g.playRound(players, round)
		g.advanceButton(players)
	}
	return nil
}

func (g *Game) countWithChips(players []*player) int {
	n := 0
	for _, p := range players {
		if p.stack > 0 {
			n++
		}
	}
	return n
}

func (g *Game) advanceButton(players []*player) {
	for i := 1; i <= len(players); i++ {
		idx := (g.button + i) % len(players)
		if players[idx].stack > 0 {
			g.button = idx
			return
		}
	}
}

// nextActor returns the next seat index after from that can still act
func nextActor(players []*player, from int) int {
	for i := 1; i <= len(players); i++ {
		idx := (from + i) % len(players)
		p := players[idx]
		if !p.out && !p.folded && !p.allin && p.stack > 0 {
			return idx
		}
	}
	return -1
}

// nextIn returns the next seat index after from that is dealt into the hand
func nextIn(players []*player, from int) int {
	for i := 1; i <= len(players); i++ {
		idx := (from + i) % len(players)
		if !players[idx].out && !players[idx].folded {
			return idx
		}
	}
	return -1
}

func seatStates(players []*player) []SeatState {
	states := make([]SeatState, len(players))
	for i, p := range players {
		states[i] = SeatState{
			ID:     p.seat.ID(),
			Name:   p.seat.Name(),
			Stack:  p.stack,
			Bet:    p.streetBet,
			Folded: p.folded || p.out,
			AllIn:  p.allin,
		}
	}
	return states
}

type round struct {
	number       int
	board        []deck.Card
	pm           *potManager
	currentBet   int
	minRaiseSize int
	street       Street
	history      map[Street][]ActionRecord
	actions      []ActionRecord
}

func (g *Game) publicState(players []*player, r *round) PublicState {
	return PublicState{
		RoundNumber:  r.number,
		Street:       r.street,
		Board:        append([]deck.Card(nil), r.board...),
		Pot:          r.pm.totalPot(),
		CurrentBet:   r.currentBet,
		SmallBlind:   g.cfg.SmallBlind,
		BigBlind:     g.cfg.BigBlind,
		DealerButton: g.button,
		Seats:        seatStates(players),
	}
}

func (g *Game) playRound(players []*player, number int) {
	d := deck.New(g.rng)
	d.Shuffle()

	r := &round{
		number:       number,
		pm:           newPotManager(len(players)),
		currentBet:   g.cfg.BigBlind,
		minRaiseSize: g.cfg.BigBlind,
		street:       StreetPreflop,
		history:      make(map[Street][]ActionRecord),
	}

	initialStacks := make(map[string]int, len(players))
	for _, p := range players {
		p.folded = false
		p.allin = false
		p.streetBet = 0
		p.hole = nil
		p.out = p.stack <= 0
		p.folded = p.out
		initialStacks[p.seat.ID()] = p.stack
	}

	// Blinds. Heads-up the button posts the small blind.
	sb := nextIn(players, g.button)
	if dealt := len(players) - g.countOut(players); dealt == 2 {
		if !players[g.button].out {
			sb = g.button
		}
	}
	bb := nextIn(players, sb)
	g.postBlind(players, r, sb, g.cfg.SmallBlind)
	g.postBlind(players, r, bb, g.cfg.BigBlind)

	for _, p := range players {
		if !p.out {
			p.hole = d.DealN(2)
		}
	}

	state := g.publicState(players, r)
	for _, p := range players {
		p.seat.RoundStart(number, append([]deck.Card(nil), p.hole...), state)
	}
	g.broadcastStreet(players, r)

	handDone := g.bettingRound(players, r, nextActor(players, bb))

	for _, street := range []Street{StreetFlop, StreetTurn, StreetRiver} {
		if handDone {
			break
		}
		r.street = street
		if street == StreetFlop {
			r.board = append(r.board, d.DealN(3)...)
		} else {
			r.board = append(r.board, d.DealN(1)...)
		}
		r.currentBet = 0
		r.minRaiseSize = g.cfg.BigBlind
		for _, p := range players {
			p.streetBet = 0
		}
		g.broadcastStreet(players, r)

		// Betting only matters while two or more seats can still act.
		if g.countCanAct(players) >= 2 {
			handDone = g.bettingRound(players, r, nextActor(players, g.button))
		}
	}

	g.finishRound(players, r, initialStacks)
}

func (g *Game) countOut(players []*player) int {
	n := 0
	for _, p := range players {
		if p.out {
			n++
		}
	}
	return n
}

func (g *Game) countCanAct(players []*player) int {
	n := 0
	for _, p := range players {
		if !p.out && !p.folded && !p.allin {
			n++
		}
	}
	return n
}

func (g *Game) countAlive(players []*player) int {
	n := 0
	for _, p := range players {
		if !p.out && !p.folded {
			n++
		}
	}
	return n
}

func (g *Game) postBlind(players []*player, r *round, idx, amount int) {
	if idx < 0 {
		return
	}
	p := players[idx]
	if amount > p.stack {
		amount = p.stack
	}
	p.stack -= amount
	p.streetBet += amount
	r.pm.addBet(idx, amount)
	if p.stack == 0 {
		p.allin = true
	}
}

func (g *Game) broadcastStreet(players []*player, r *round) {
	state := g.publicState(players, r)
	for _, p := range players {
		p.seat.StreetStart(state)
	}
}

// bettingRound runs one street of betting. Returns true when the hand is
// decided (all but one folded).
func (g *Game) bettingRound(players []*player, r *round, start int) bool {
	if start < 0 {
		return g.countAlive(players) <= 1
	}

	queue := g.buildQueue(players, start)

	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		p := players[idx]
		if p.out || p.folded || p.allin {
			continue
		}

		legal := g.legalActions(p, r)
		act, err := p.seat.DeclareAction(ActionRequest{
			SeatID: p.seat.ID(),
			Hole:   append([]deck.Card(nil), p.hole...),
			Legal:  legal,
			State:  g.publicState(players, r),
		})
		if err != nil {
			// A dead seat checks when free, folds otherwise.
			g.logger.Warn("seat failed to act", "seat", p.seat.Name(), "err", err)
			if legal.CanCheck() {
				act = Action{Type: ActionCall}
			} else {
				act = Action{Type: ActionFold}
			}
		}

		rec := g.applyAction(players, r, idx, act, legal)
		r.history[r.street] = append(r.history[r.street], rec)
		r.actions = append(r.actions, rec)

		state := g.publicState(players, r)
		for _, other := range players {
			other.seat.GameUpdate(rec, state)
		}

		if g.countAlive(players) <= 1 {
			g.endStreet(players, r)
			return true
		}

		if rec.Action == ActionRaise {
			// Betting reopens for everyone except the raiser.
			queue = removeInt(g.buildQueue(players, (idx+1)%len(players)), idx)
		}
	}

	g.endStreet(players, r)
	return false
}

// buildQueue lists the seats that can act, in table order starting at first
func (g *Game) buildQueue(players []*player, first int) []int {
	var queue []int
	idx := first
	for i := 0; i < len(players); i++ {
		p := players[idx]
		if !p.out && !p.folded && !p.allin && p.stack > 0 && !containsInt(queue, idx) {
			queue = append(queue, idx)
		}
		idx = (idx + 1) % len(players)
	}
	return queue
}

func removeInt(s []int, v int) []int {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func (g *Game) legalActions(p *player, r *round) LegalActions {
	toCall := r.currentBet - p.streetBet
	if toCall > p.stack {
		toCall = p.stack
	}
	if toCall < 0 {
		toCall = 0
	}

	maxRaise := p.streetBet + p.stack
	minRaise := r.currentBet + r.minRaiseSize
	if maxRaise <= r.currentBet {
		// Not enough chips to raise; all-in is a call.
		return LegalActions{CallAmount: toCall}
	}
	if minRaise > maxRaise {
		minRaise = maxRaise // short all-in raise
	}
	return LegalActions{CallAmount: toCall, MinRaise: minRaise, MaxRaise: maxRaise}
}

// applyAction mutates the table for one declared action, clamping anything
// the seat validation let through.
func (g *Game) applyAction(players []*player, r *round, idx int, act Action, legal LegalActions) ActionRecord {
	p := players[idx]
	rec := ActionRecord{
		SeatID: p.seat.ID(),
		Name:   p.seat.Name(),
		Street: r.street,
	}

	if act.Type == ActionRaise && !legal.CanRaise() {
		act.Type = ActionCall
	}

	switch act.Type {
	case ActionFold:
		p.folded = true
		rec.Action = ActionFold

	case ActionRaise:
		amount := act.Amount
		if amount < legal.MinRaise {
			amount = legal.MinRaise
		}
		if amount > legal.MaxRaise {
			amount = legal.MaxRaise
		}
		delta := amount - p.streetBet
		if delta > p.stack {
			delta = p.stack
		}
		p.stack -= delta
		p.streetBet += delta
		r.pm.addBet(idx, delta)
		if p.stack == 0 {
			p.allin = true
		}
		if p.streetBet > r.currentBet {
			raiseSize := p.streetBet - r.currentBet
			if raiseSize > r.minRaiseSize {
				r.minRaiseSize = raiseSize
			}
			r.currentBet = p.streetBet
		}
		rec.Action = ActionRaise
		rec.Amount = p.streetBet

	default: // call (or check at 0)
		delta := legal.CallAmount
		if delta > p.stack {
			delta = p.stack
		}
		p.stack -= delta
		p.streetBet += delta
		r.pm.addBet(idx, delta)
		if p.stack == 0 {
			p.allin = true
		}
		rec.Action = ActionCall
		rec.Amount = delta
	}

	return rec
}

func (g *Game) endStreet(players []*player, r *round) {
	if idx, refund := r.pm.returnUncalled(); idx >= 0 {
		players[idx].stack += refund
		players[idx].streetBet -= refund
		if players[idx].allin && players[idx].stack > 0 {
			players[idx].allin = false
		}
	}
	r.pm.resetCurrentBets()
}

func (g *Game) finishRound(players []*player, r *round, initialStacks map[string]int) {
	alive := g.countAlive(players)
	showdown := alive >= 2

	folded := make([]bool, len(players))
	ranks := make([]evaluator.HandRank, len(players))
	for i, p := range players {
		folded[i] = p.out || p.folded
		ranks[i] = evaluator.WorstRank
		if !folded[i] && len(p.hole) == 2 {
			ranks[i] = evaluator.Evaluate(append(append([]deck.Card(nil), p.hole...), r.board...))
		}
	}

	winnings := r.pm.settle(folded, ranks)

	var winners []Winner
	var handInfo []HandInfo
	for i, p := range players {
		if winnings[i] > 0 {
			p.stack += winnings[i]
			w := Winner{SeatID: p.seat.ID(), Name: p.seat.Name(), Amount: winnings[i]}
			if showdown {
				w.Hand = ranks[i].Class().String()
			}
			winners = append(winners, w)
		}
		if showdown && !folded[i] {
			made := evaluator.DescribeMadeHand(p.hole, r.board)
			handInfo = append(handInfo, HandInfo{
				SeatID:      p.seat.ID(),
				Name:        p.seat.Name(),
				Hole:        append([]deck.Card(nil), p.hole...),
				Hand:        ranks[i].Class().String(),
				Description: made.Description,
			})
		}
	}

	for _, p := range players {
		p.streetBet = 0
	}

	result := RoundResult{
		RoundNumber:   r.number,
		Winners:       winners,
		HandInfo:      handInfo,
		State:         g.publicState(players, r),
		InitialStacks: initialStacks,
		StreetHistory: r.history,
		PlayerActions: r.actions,
	}

	g.logger.Debug("round finished", "round", r.number, "winners", len(winners), "pot", r.pm.totalPot())

	for _, p := range players {
		p.seat.RoundResult(result)
	}
}
