// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package kpi

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// FormatCurrency renders a BRL amount with Brazilian separators:
// 1234.56 becomes "R$ 1.234,56". Dashboard tooltips and snapshot payloads
// always carry this form alongside the raw numeric value.
func FormatCurrency(v float64) string {
	return ptBR.Sprintf("R$ %.2f", v)
}

// FormatPercent renders a ratio already scaled to percent with one decimal,
// e.g. 20.0 becomes "20.0%".
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// FormatDate renders a day in the ISO form used by the API and snapshots.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
