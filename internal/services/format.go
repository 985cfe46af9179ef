// Package services – Formatter
//
// This file renders Grocy entities as the short text lines used in chat
// replies and notifications. Amounts go through golang.org/x/text so that
// decimal separators follow the configured locale, and name ordering uses a
// locale-aware collator. Dates use a per-language layout table because
// x/text has no calendar formatting.
package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/tbourn/go-grocy-bot/internal/domain"
)

// dateLayouts maps a base language to its medium date layout.
var dateLayouts = map[string]string{
	"en": "Jan 2, 2006",
	"de": "02.01.2006",
	"fr": "02/01/2006",
	"es": "02/01/2006",
	"it": "02/01/2006",
	"nl": "02-01-2006",
	"pl": "02.01.2006",
	"ru": "02.01.2006",
}

// Formatter renders entities for chat messages. It is safe for concurrent
// use.
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
	layout  string
	now     func() time.Time
}

// NewFormatter returns a Formatter for locale (BCP 47, e.g. "en", "de-AT").
// Unknown or empty locales fall back to English.
func NewFormatter(locale string, now func() time.Time) *Formatter {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil || locale == "" {
		tag = language.English
	}
	if now == nil {
		now = time.Now
	}
	base, _ := tag.Base()
	layout, ok := dateLayouts[base.String()]
	if !ok {
		layout = "2006-01-02"
	}
	return &Formatter{
		tag:     tag,
		printer: message.NewPrinter(tag),
		layout:  layout,
		now:     now,
	}
}

// Locale returns the formatter's language tag.
func (f *Formatter) Locale() language.Tag { return f.tag }

// Amount prints v without a fractional part when it is whole.
func (f *Formatter) Amount(v float64) string {
	if v == math.Trunc(v) {
		return f.printer.Sprintf("%d", int64(v))
	}
	return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// Date prints the calendar day of t.
func (f *Formatter) Date(t time.Time) string {
	return t.Format(f.layout)
}

// Product renders "<amount>x\t<name>" plus the best-before date when the
// product expires.
func (f *Formatter) Product(p domain.Product) string {
	text := fmt.Sprintf("%sx\t%s", f.Amount(p.AvailableAmount), p.Name)
	if p.HasExpiry() {
		text += fmt.Sprintf(" (Exp: %s)", f.Date(p.BestBeforeDate))
	}
	return text
}

// Chore renders the chore name and, when scheduled, how many days it is
// off from today.
func (f *Formatter) Chore(c domain.Chore) string {
	if c.NextEstimatedExecutionTime == nil {
		return c.Name
	}
	next := *c.NextEstimatedExecutionTime
	days := int(math.Abs(next.Sub(f.now()).Hours()) / 24)
	return fmt.Sprintf("%s\n  Due: %d days (%s)", c.Name, days, f.Date(next))
}

// ShoppingListItem renders "<amount>x <product name>".
func (f *Formatter) ShoppingListItem(i domain.ShoppingListItem) string {
	return fmt.Sprintf("%sx %s", f.Amount(i.Amount), i.ProductName())
}

// Task renders the task name with its due date when set.
func (f *Formatter) Task(t domain.Task) string {
	if t.DueDate == nil {
		return t.Name
	}
	return fmt.Sprintf("%s (Due: %s)", t.Name, f.Date(*t.DueDate))
}

// Message joins a header and its lines into one chat message.
func Message(header string, lines []string) string {
	return strings.TrimSpace(strings.Join(append([]string{header}, lines...), "\n"))
}

// Lines maps items to their rendered lines.
func Lines[T any](items []T, render func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, render(it))
	}
	return out
}

// SortByName orders items by name using the formatter's collation,
// ignoring case.
func SortByName[T any](f *Formatter, items []T, name func(T) string) {
	col := collate.New(f.tag, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		return col.CompareString(name(items[i]), name(items[j])) < 0
	})
}
