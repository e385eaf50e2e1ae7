package engine

import (
	"context"
	"fmt"
	"math"

	"autotrader/internal/core"
)

// Stats summarizes the full closed-trade history.
type Stats struct {
	TotalTrades  int
	TotalProfit  float64
	WinRate      float64
	AverageWin   float64
	AverageLoss  float64
	ProfitFactor float64
}

// Statistics computes the trade statistics over every recorded closed trade.
func (e *Engine) Statistics(ctx context.Context) (Stats, error) {
	trades, err := e.opts.Store.ReadClosedTrades(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("read closed trades: %w", err)
	}
	return computeStats(trades), nil
}

func computeStats(trades []core.ClosedTrade) Stats {
	s := Stats{TotalTrades: len(trades)}

	var wins, losses int
	var grossProfit, grossLoss float64
	for _, t := range trades {
		s.TotalProfit += t.Profit
		if t.Profit > 0 {
			wins++
			grossProfit += t.Profit
		} else {
			losses++
			grossLoss += t.Profit
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(wins) / float64(s.TotalTrades)
	}
	if wins > 0 {
		s.AverageWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		s.AverageLoss = grossLoss / float64(losses)
	}
	if grossLoss < 0 {
		s.ProfitFactor = grossProfit / -grossLoss
	} else {
		// No losing trades yet.
		s.ProfitFactor = math.Inf(1)
	}
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"Total Trades: %d\nTotal Profit: %.4f\nWin Rate: %.2f%%\nAverage Win: %.4f\nAverage Loss: %.4f\nProfit Factor: %.2f",
		s.TotalTrades, s.TotalProfit, s.WinRate*100, s.AverageWin, s.AverageLoss, s.ProfitFactor)
}
