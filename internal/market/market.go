// Package market builds market access by exchange name.
package market

import (
	"strings"

	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/market/csvfeed"
	"algo-trading-bot/internal/market/simulated"
	"algo-trading-bot/internal/market/zerodha"
	"algo-trading-bot/internal/types"

	"github.com/pkg/errors"
)

const (
	Zerodha   = "zerodha"
	Simulated = "simulated"
	CSV       = "csv"
)

type Params struct {
	Name        string
	Testnet     bool
	APIKey      string
	AccessToken string
	Exchange    string
	Product     string
	FeeRate     float64
	DataDir     string // csv
	Seed        int64  // simulated
	Balance     float64
}

func New(p Params) (interfaces.MarketAccess, error) {
	switch strings.ToLower(p.Name) {
	case Zerodha:
		z, err := zerodha.New(zerodha.Params{
			APIKey:      p.APIKey,
			AccessToken: p.AccessToken,
			Exchange:    p.Exchange,
			Product:     p.Product,
			FeeRate:     p.FeeRate,
			Testnet:     p.Testnet,
		})
		if err != nil {
			return nil, err
		}
		return z, nil
	case Simulated, "":
		cfg := simulated.DefaultConfig()
		if p.Seed != 0 {
			cfg.Seed = p.Seed
		}
		if p.Balance > 0 {
			cfg.Balance = p.Balance
		}
		cfg.FeeRate = p.FeeRate
		return simulated.New(cfg), nil
	case CSV:
		if p.DataDir == "" {
			return nil, errors.Wrap(types.ErrConfigurationInvalid, "csv market needs a data directory")
		}
		return csvfeed.New(p.DataDir), nil
	default:
		return nil, errors.Wrapf(types.ErrConfigurationInvalid, "unknown exchange %q", p.Name)
	}
}

func Names() []string {
	return []string{Zerodha, Simulated, CSV}
}
