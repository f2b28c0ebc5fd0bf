package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bamsammich/pcopy/internal/stats"
	"github.com/bamsammich/pcopy/internal/ui"
)

// sizeValue is a byte count flag that accepts suffixes such as 256K or 1G.
type sizeValue struct {
	n *int64
}

var _ pflag.Value = sizeValue{}

func newSizeValue(def int64, p *int64) sizeValue {
	*p = def
	return sizeValue{n: p}
}

func (v sizeValue) String() string {
	if v.n == nil || *v.n == 0 {
		return "0"
	}
	return stats.FormatBytes(*v.n)
}

func (v sizeValue) Set(s string) error {
	n, err := ui.ParseSize(s)
	if err != nil {
		return err
	}
	*v.n = n
	return nil
}

func (sizeValue) Type() string { return "size" }

// checkPositive rejects values that must be at least one.
func checkPositive(name string, n int64) error {
	if n <= 0 {
		return fmt.Errorf("--%s must be positive", name)
	}
	return nil
}
