package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"trade_watch/internal/levels"
	"trade_watch/internal/models"
	"trade_watch/internal/modules/config"
	"trade_watch/internal/modules/store"
	storesvc "trade_watch/internal/modules/store/service"
	"trade_watch/internal/symbols"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// snapshot печатает позиции, хвост лога сигналов и курсоры клиентов из стора.
func main() {
	limit := pflag.IntP("limit", "n", 20, "how many recent signals to show")
	openOnly := pflag.Bool("open", false, "show only open positions")
	pflag.Parse()

	var (
		positions *storesvc.Family[models.Position]
		signals   *storesvc.Family[models.Signal]
		cursors   *storesvc.Family[models.Cursor]
	)
	app := fx.New(
		fx.NopLogger,
		config.Module(),
		fx.Provide(zap.NewNop),
		store.Module(),
		fx.Populate(&positions, &signals, &cursors),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "start:", err)
		os.Exit(1)
	}
	defer func() { _ = app.Stop(ctx) }()

	calc := levels.NewCalculator(levels.DefaultConfig(), symbols.Default())

	ps, err := positions.LoadAll(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "positions:", err)
		return
	}
	printPositions(ps, calc, *openOnly)

	ss, err := signals.LoadAll(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "signals:", err)
		return
	}
	if *limit > 0 && *limit < len(ss) {
		ss = ss[len(ss)-*limit:]
	}
	printSignals(ss)

	cs, err := cursors.LoadAll(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cursors:", err)
		return
	}
	printCursors(cs)
}

func printPositions(ps []models.Position, calc *levels.Calculator, openOnly bool) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Positions")
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Symbol", "Side", "Entry", "SL", "TP1", "TP2", "TP3", "Hits", "Last", "Status"})
	for _, p := range ps {
		if openOnly && p.Closed {
			continue
		}
		f := func(v float64) string { return calc.FormatPrice(p.Symbol, v) }
		status := "open"
		if p.Closed {
			status = p.CloseReason
		}
		t.AppendRow(table.Row{
			shortID(p.ID), p.Symbol, p.Side,
			f(p.Entry), f(p.SL), f(p.TP1), f(p.TP2), f(p.TP3),
			hits(p), f(p.LastPrice), status,
		})
	}
	t.Render()
}

func printSignals(ss []models.Signal) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Signals")
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Symbol", "Side", "TF", "Entry", "Received"})
	for _, s := range ss {
		t.AppendRow(table.Row{s.ID, s.Symbol, s.Side, s.Timeframe, s.Entry, s.ReceivedAt.Format(time.RFC3339)})
	}
	t.Render()
}

func printCursors(cs []models.Cursor) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Cursors")
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Client", "Last ack", "Acked at"})
	for _, c := range cs {
		t.AppendRow(table.Row{c.ClientID, c.LastAckID, c.AckedAt.Format(time.RFC3339)})
	}
	t.Render()
}

func hits(p models.Position) string {
	out := ""
	for _, h := range []struct {
		on  bool
		tag string
	}{{p.TP1Hit, "1"}, {p.TP2Hit, "2"}, {p.TP3Hit, "3"}, {p.SLHit, "S"}} {
		if h.on {
			out += h.tag
		} else {
			out += "-"
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
