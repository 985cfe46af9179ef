// Package services – Stats
//
// This file renders the bot's own Prometheus series as plain text for the
// /stats chat command. Only families carrying observability.MetricPrefix are
// included, so process and Go runtime collectors stay out of the chat.
package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/tbourn/go-grocy-bot/internal/observability"
)

// FormatMetrics gathers from g and renders one block per metric family:
//
//	grocybot_chores_total:
//	  3
//	grocybot_product_inventory:
//	  {product_name="Milk"} 2
func FormatMetrics(g prometheus.Gatherer) (string, error) {
	families, err := g.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}

	var blocks []string
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), observability.MetricPrefix) {
			continue
		}
		lines := []string{mf.GetName() + ":"}
		for _, m := range mf.GetMetric() {
			lines = append(lines, "  "+formatSample(mf.GetType(), m))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	sort.Strings(blocks)
	if len(blocks) == 0 {
		return "No statistics yet.", nil
	}
	return strings.Join(blocks, "\n\n"), nil
}

func formatSample(t dto.MetricType, m *dto.Metric) string {
	var value string
	switch t {
	case dto.MetricType_GAUGE:
		value = formatFloat(m.GetGauge().GetValue())
	case dto.MetricType_COUNTER:
		value = formatFloat(m.GetCounter().GetValue())
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		value = fmt.Sprintf("count=%d sum=%ss", h.GetSampleCount(), formatFloat(h.GetSampleSum()))
	case dto.MetricType_SUMMARY:
		s := m.GetSummary()
		value = fmt.Sprintf("count=%d sum=%s", s.GetSampleCount(), formatFloat(s.GetSampleSum()))
	default:
		value = formatFloat(m.GetUntyped().GetValue())
	}

	if len(m.GetLabel()) == 0 {
		return value
	}
	pairs := make([]string, 0, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		pairs = append(pairs, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
	}
	return "{" + strings.Join(pairs, ",") + "} " + value
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
