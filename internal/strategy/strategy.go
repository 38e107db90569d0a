package strategy

import (
	"errors"
	"fmt"
	"sort"

	"tradesmart-bot-go/internal/indicator"
	"tradesmart-bot-go/internal/market"
)

// Signal is the action a strategy asks for on the newest bar.
type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Decision is a Signal plus the size to sell. A zero Size sells the whole position.
type Decision struct {
	Signal Signal
	Size   float64
}

// Strategy defines the interface for a trading strategy.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Decide looks at bars and their indicators, both newest first and aligned.
	Decide(bars []market.CandleStick, inds []indicator.Indicator) Decision
}

// ErrUnknownStrategy is returned by New for a name that is not registered.
var ErrUnknownStrategy = errors.New("unknown strategy")

var registry = map[string]func() Strategy{
	"simple": func() Strategy { return SimpleStrategy{} },
	"tech":   func() Strategy { return TechStrategy{} },
}

// New returns the strategy registered under name.
func New(name string) (Strategy, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q, expected one of %v", ErrUnknownStrategy, name, Names())
	}
	return f(), nil
}

// Names lists the registered strategies.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func hold() Decision { return Decision{Signal: Hold} }
