package symbols

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v2"
)

//go:embed symbols.yaml
var embedded []byte

type Class int

const (
	ClassOther Class = iota
	ClassCrypto
	ClassMetal
)

func (c Class) String() string {
	switch c {
	case ClassCrypto:
		return "crypto"
	case ClassMetal:
		return "metal"
	default:
		return "other"
	}
}

type Crypto struct {
	CoinGecko string `yaml:"coingecko"`
	Binance   string `yaml:"binance"`
}

type Table struct {
	Crypto         map[string]Crypto `yaml:"crypto"`
	Metals         map[string]string `yaml:"metals"`
	Aliases        map[string]string `yaml:"aliases"`
	Digits         map[string]int    `yaml:"digits"`
	DefaultDigits  int               `yaml:"default_digits"`
	PercentTargets []string          `yaml:"percent_targets"`

	percent map[string]struct{}
}

func Parse(data []byte) (*Table, error) {
	t := &Table{}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}
	if t.DefaultDigits <= 0 {
		t.DefaultDigits = 4
	}
	t.percent = make(map[string]struct{}, len(t.PercentTargets))
	for _, s := range t.PercentTargets {
		t.percent[s] = struct{}{}
	}
	return t, nil
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default - таблица, вшитая в бинарь.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(embedded)
		if err != nil {
			panic(err)
		}
		defaultTable = t
	})
	return defaultTable
}

func (t *Table) Class(symbol string) Class {
	if _, ok := t.Crypto[symbol]; ok {
		return ClassCrypto
	}
	if _, ok := t.Metals[symbol]; ok {
		return ClassMetal
	}
	return ClassOther
}

// Alias - тикер для фолбэк-поставщика; без алиаса возвращается сам символ.
func (t *Table) Alias(symbol string) string {
	if a, ok := t.Aliases[symbol]; ok {
		return a
	}
	return symbol
}

func (t *Table) DigitsFor(symbol string) int {
	if d, ok := t.Digits[symbol]; ok {
		return d
	}
	return t.DefaultDigits
}

func (t *Table) UsesPercentTargets(symbol string) bool {
	_, ok := t.percent[symbol]
	return ok
}
