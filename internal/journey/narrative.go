// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package journey

import (
	"fmt"
	"strings"

	"github.com/kpideck/kpideck/internal/kpi"
	"github.com/kpideck/kpideck/internal/models"
)

// BuildNarrative renders a short deterministic summary of a journey record.
// Same record in, same text out; no external calls.
func BuildNarrative(record *models.JourneyRecord) string {
	var b strings.Builder
	m := record.Metrics

	fmt.Fprintf(&b, "%s entered the base %s ago", record.DisplayName(), pluralDays(m.DaysInBase))
	if record.Marketing != nil && !record.Marketing.Contact.DateAdded.IsZero() {
		fmt.Fprintf(&b, " (%s)", kpi.FormatDate(record.Marketing.Contact.DateAdded))
	}
	b.WriteString(".")

	if m.TotalActivities > 0 {
		fmt.Fprintf(&b, " Since then: %d tracked activities", m.TotalActivities)
		details := activityDetails(m)
		if len(details) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(details, ", "))
		}
		b.WriteString(".")
	}

	if record.Marketing != nil && len(record.Marketing.Campaigns) > 0 {
		names := make([]string, 0, len(record.Marketing.Campaigns))
		for _, c := range record.Marketing.Campaigns {
			names = append(names, c.Name)
		}
		fmt.Fprintf(&b, " Campaigns: %s.", strings.Join(names, ", "))
	}

	switch m.ConversionStatus {
	case models.StatusWon:
		b.WriteString(" Converted to customer")
		if m.DaysToConversion != nil {
			fmt.Fprintf(&b, " after %s in the base", pluralDays(*m.DaysToConversion))
		}
		if m.DealValue != nil {
			fmt.Fprintf(&b, " with a deal of %s", kpi.FormatCurrency(*m.DealValue))
		}
		b.WriteString(".")
	case models.StatusNegotiating:
		b.WriteString(" Currently negotiating an open deal.")
	case models.StatusLost:
		b.WriteString(" All deals were lost.")
	default:
		b.WriteString(" Still a lead with no deals in the CRM.")
	}

	if record.CRM == nil {
		b.WriteString(" CRM data was unavailable for this lookup.")
	}

	return b.String()
}

func activityDetails(m models.JourneyMetrics) []string {
	details := make([]string, 0, 6)
	if m.EmailsOpened > 0 {
		details = append(details, fmt.Sprintf("%d emails opened", m.EmailsOpened))
	}
	if m.PagesVisited > 0 {
		details = append(details, fmt.Sprintf("%d pages visited", m.PagesVisited))
	}
	if m.FormsSubmitted > 0 {
		details = append(details, fmt.Sprintf("%d forms submitted", m.FormsSubmitted))
	}
	if m.Downloads > 0 {
		details = append(details, fmt.Sprintf("%d downloads", m.Downloads))
	}
	if m.VideosWatched > 0 {
		details = append(details, fmt.Sprintf("%d videos watched", m.VideosWatched))
	}
	return details
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
